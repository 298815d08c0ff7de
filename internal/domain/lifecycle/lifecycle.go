// Package lifecycle declares the application state machine: statuses,
// pipeline stages, decisions, and the pure transition function that
// advances an application. All stage agents funnel through Next so the
// transition table lives in exactly one place.
package lifecycle

import "fmt"

// Status is the lifecycle phase of an application.
type Status string

// Lifecycle statuses, in pipeline order.
const (
	StatusApplied      Status = "applied"
	StatusScreening    Status = "screening"
	StatusMCQ          Status = "mcq"
	StatusCoding       Status = "coding"
	StatusBehavioral   Status = "behavioral"
	StatusInterviewing Status = "interviewing"
	StatusShortlisted  Status = "shortlisted"
	StatusHired        Status = "hired"
	StatusRejected     Status = "rejected"
)

// Decision is the categorical outcome of a stage evaluation.
type Decision string

// Stage decisions.
const (
	DecisionPending    Decision = "pending"
	DecisionReject     Decision = "reject"
	DecisionBorderline Decision = "borderline"
	DecisionPass       Decision = "pass"
	DecisionStrongPass Decision = "strong_pass"
)

// Stage identifies one of the six pipeline agents.
type Stage int

// Pipeline stages, 1-6.
const (
	StageGatekeeper  Stage = 1
	StageQuizmaster  Stage = 2
	StageCodeJudge   Stage = 3
	StagePersona     Stage = 4
	StageInterviewer Stage = 5
	StageVerdict     Stage = 6
)

// Borderline band below the passing threshold, and the margin above it
// that earns a strong pass.
const (
	borderlineBand   = 10.0
	strongPassMargin = 20.0
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusApplied, StatusScreening, StatusMCQ, StatusCoding,
		StatusBehavioral, StatusInterviewing, StatusShortlisted,
		StatusHired, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no stage agent may mutate s further.
func (s Status) Terminal() bool {
	switch s {
	case StatusShortlisted, StatusHired, StatusRejected:
		return true
	}
	return false
}

// Valid reports whether the stage number is in 1..6.
func (g Stage) Valid() bool {
	return g >= StageGatekeeper && g <= StageVerdict
}

// Next returns the stage that follows g, or 0 past the end.
func (g Stage) Next() Stage {
	if g >= StageVerdict {
		return 0
	}
	return g + 1
}

// Name returns the agent name for the stage.
func (g Stage) Name() string {
	switch g {
	case StageGatekeeper:
		return "gatekeeper"
	case StageQuizmaster:
		return "quizmaster"
	case StageCodeJudge:
		return "codejudge"
	case StagePersona:
		return "persona"
	case StageInterviewer:
		return "interviewer"
	case StageVerdict:
		return "verdict"
	}
	return "unknown"
}

// Status returns the lifecycle status an application holds while the
// stage is evaluating it. Verdict runs against shortlisted candidates
// and owns no status of its own.
func (g Stage) Status() Status {
	switch g {
	case StageGatekeeper:
		return StatusScreening
	case StageQuizmaster:
		return StatusMCQ
	case StageCodeJudge:
		return StatusCoding
	case StagePersona:
		return StatusBehavioral
	case StageInterviewer:
		return StatusInterviewing
	case StageVerdict:
		return StatusShortlisted
	}
	return ""
}

// StageForStatus returns the stage responsible for an application in
// the given status, or 0 for terminal/unknown statuses. An application
// that has only just applied belongs to the gatekeeper.
func StageForStatus(s Status) Stage {
	switch s {
	case StatusApplied, StatusScreening:
		return StageGatekeeper
	case StatusMCQ:
		return StageQuizmaster
	case StatusCoding:
		return StageCodeJudge
	case StatusBehavioral:
		return StagePersona
	case StatusInterviewing:
		return StageInterviewer
	}
	return 0
}

// CanRun reports whether stage g may evaluate an application currently
// in status s. Out-of-order invocations are refused rather than
// silently reading stale upstream data.
func CanRun(s Status, g Stage) error {
	if s.Terminal() {
		return fmt.Errorf("%w: status %s", ErrTerminal, s)
	}
	if !g.Valid() || g == StageVerdict {
		return fmt.Errorf("%w: stage %d", ErrBadTransition, int(g))
	}
	if StageForStatus(s) != g {
		return fmt.Errorf("%w: application is %s, stage %s expects %s",
			ErrOutOfOrder, s, g.Name(), g.Status())
	}
	return nil
}

// Next computes the status that follows a stage decision. Borderline
// and pending hold the application in place; reject is terminal; pass
// and strong pass advance one step. Calling Next on a terminal status
// is an error: terminal states are immutable.
func Next(current Status, d Decision) (Status, error) {
	if current.Terminal() {
		return current, fmt.Errorf("%w: status %s", ErrTerminal, current)
	}
	switch d {
	case DecisionPending, DecisionBorderline:
		return current, nil
	case DecisionReject:
		return StatusRejected, nil
	case DecisionPass, DecisionStrongPass:
	default:
		return current, fmt.Errorf("%w: decision %q", ErrBadTransition, d)
	}

	switch current {
	case StatusApplied, StatusScreening:
		return StatusMCQ, nil
	case StatusMCQ:
		return StatusCoding, nil
	case StatusCoding:
		return StatusBehavioral, nil
	case StatusBehavioral:
		return StatusInterviewing, nil
	case StatusInterviewing:
		return StatusShortlisted, nil
	}
	return current, fmt.Errorf("%w: status %q", ErrBadTransition, current)
}

// Decide maps an overall score against a passing threshold. Scores at
// or above the threshold pass (strongly when they clear it by
// strongPassMargin); scores within borderlineBand below it hold the
// candidate for review; everything lower rejects.
func Decide(score, threshold float64) Decision {
	switch {
	case score >= threshold+strongPassMargin:
		return DecisionStrongPass
	case score >= threshold:
		return DecisionPass
	case score >= threshold-borderlineBand:
		return DecisionBorderline
	default:
		return DecisionReject
	}
}
