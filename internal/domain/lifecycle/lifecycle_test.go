package lifecycle_test

import (
	"testing"

	"github.com/okian/sift/internal/domain/lifecycle"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStatus(t *testing.T) {
	Convey("Given the lifecycle statuses", t, func() {
		Convey("Then every enumerated status should be valid", func() {
			statuses := []lifecycle.Status{
				lifecycle.StatusApplied,
				lifecycle.StatusScreening,
				lifecycle.StatusMCQ,
				lifecycle.StatusCoding,
				lifecycle.StatusBehavioral,
				lifecycle.StatusInterviewing,
				lifecycle.StatusShortlisted,
				lifecycle.StatusHired,
				lifecycle.StatusRejected,
			}
			for _, s := range statuses {
				So(s.Valid(), ShouldBeTrue)
			}
		})

		Convey("Then unknown statuses should be invalid", func() {
			So(lifecycle.Status("").Valid(), ShouldBeFalse)
			So(lifecycle.Status("pending").Valid(), ShouldBeFalse)
		})

		Convey("Then only shortlisted, hired and rejected should be terminal", func() {
			So(lifecycle.StatusShortlisted.Terminal(), ShouldBeTrue)
			So(lifecycle.StatusHired.Terminal(), ShouldBeTrue)
			So(lifecycle.StatusRejected.Terminal(), ShouldBeTrue)

			So(lifecycle.StatusApplied.Terminal(), ShouldBeFalse)
			So(lifecycle.StatusScreening.Terminal(), ShouldBeFalse)
			So(lifecycle.StatusMCQ.Terminal(), ShouldBeFalse)
			So(lifecycle.StatusCoding.Terminal(), ShouldBeFalse)
			So(lifecycle.StatusBehavioral.Terminal(), ShouldBeFalse)
			So(lifecycle.StatusInterviewing.Terminal(), ShouldBeFalse)
		})
	})
}

func TestStage(t *testing.T) {
	Convey("Given the pipeline stages", t, func() {
		Convey("Then stage numbers 1-6 should be valid and others not", func() {
			So(lifecycle.StageGatekeeper.Valid(), ShouldBeTrue)
			So(lifecycle.StageVerdict.Valid(), ShouldBeTrue)
			So(lifecycle.Stage(0).Valid(), ShouldBeFalse)
			So(lifecycle.Stage(7).Valid(), ShouldBeFalse)
		})

		Convey("Then Next should walk the chain and stop after verdict", func() {
			So(lifecycle.StageGatekeeper.Next(), ShouldEqual, lifecycle.StageQuizmaster)
			So(lifecycle.StageQuizmaster.Next(), ShouldEqual, lifecycle.StageCodeJudge)
			So(lifecycle.StageCodeJudge.Next(), ShouldEqual, lifecycle.StagePersona)
			So(lifecycle.StagePersona.Next(), ShouldEqual, lifecycle.StageInterviewer)
			So(lifecycle.StageInterviewer.Next(), ShouldEqual, lifecycle.StageVerdict)
			So(lifecycle.StageVerdict.Next(), ShouldEqual, lifecycle.Stage(0))
		})

		Convey("Then each stage should carry its agent name", func() {
			So(lifecycle.StageGatekeeper.Name(), ShouldEqual, "gatekeeper")
			So(lifecycle.StageQuizmaster.Name(), ShouldEqual, "quizmaster")
			So(lifecycle.StageCodeJudge.Name(), ShouldEqual, "codejudge")
			So(lifecycle.StagePersona.Name(), ShouldEqual, "persona")
			So(lifecycle.StageInterviewer.Name(), ShouldEqual, "interviewer")
			So(lifecycle.StageVerdict.Name(), ShouldEqual, "verdict")
			So(lifecycle.Stage(9).Name(), ShouldEqual, "unknown")
		})

		Convey("Then StageForStatus should map working statuses back", func() {
			So(lifecycle.StageForStatus(lifecycle.StatusApplied), ShouldEqual, lifecycle.StageGatekeeper)
			So(lifecycle.StageForStatus(lifecycle.StatusScreening), ShouldEqual, lifecycle.StageGatekeeper)
			So(lifecycle.StageForStatus(lifecycle.StatusMCQ), ShouldEqual, lifecycle.StageQuizmaster)
			So(lifecycle.StageForStatus(lifecycle.StatusCoding), ShouldEqual, lifecycle.StageCodeJudge)
			So(lifecycle.StageForStatus(lifecycle.StatusBehavioral), ShouldEqual, lifecycle.StagePersona)
			So(lifecycle.StageForStatus(lifecycle.StatusInterviewing), ShouldEqual, lifecycle.StageInterviewer)
			So(lifecycle.StageForStatus(lifecycle.StatusShortlisted), ShouldEqual, lifecycle.Stage(0))
			So(lifecycle.StageForStatus(lifecycle.StatusRejected), ShouldEqual, lifecycle.Stage(0))
		})
	})
}

func TestCanRun(t *testing.T) {
	Convey("Given the stage admission check", t, func() {
		Convey("When the stage matches the status", func() {
			Convey("Then the run should be allowed", func() {
				So(lifecycle.CanRun(lifecycle.StatusApplied, lifecycle.StageGatekeeper), ShouldBeNil)
				So(lifecycle.CanRun(lifecycle.StatusScreening, lifecycle.StageGatekeeper), ShouldBeNil)
				So(lifecycle.CanRun(lifecycle.StatusMCQ, lifecycle.StageQuizmaster), ShouldBeNil)
				So(lifecycle.CanRun(lifecycle.StatusInterviewing, lifecycle.StageInterviewer), ShouldBeNil)
			})
		})

		Convey("When the application is in a terminal status", func() {
			Convey("Then the run should be refused as terminal", func() {
				err := lifecycle.CanRun(lifecycle.StatusRejected, lifecycle.StageQuizmaster)
				So(err, ShouldNotBeNil)
				So(err, ShouldWrap, lifecycle.ErrTerminal)

				err = lifecycle.CanRun(lifecycle.StatusShortlisted, lifecycle.StageInterviewer)
				So(err, ShouldWrap, lifecycle.ErrTerminal)
			})
		})

		Convey("When the stage runs ahead of the application", func() {
			Convey("Then the run should be refused as out of order", func() {
				err := lifecycle.CanRun(lifecycle.StatusApplied, lifecycle.StageCodeJudge)
				So(err, ShouldNotBeNil)
				So(err, ShouldWrap, lifecycle.ErrOutOfOrder)
			})
		})

		Convey("When the stage number is invalid or the verdict stage", func() {
			Convey("Then the run should be refused as a bad transition", func() {
				So(lifecycle.CanRun(lifecycle.StatusApplied, lifecycle.Stage(0)), ShouldWrap, lifecycle.ErrBadTransition)
				So(lifecycle.CanRun(lifecycle.StatusApplied, lifecycle.StageVerdict), ShouldWrap, lifecycle.ErrBadTransition)
			})
		})
	})
}

func TestNext(t *testing.T) {
	Convey("Given the transition function", t, func() {
		Convey("When a stage passes", func() {
			Convey("Then the application should advance one step", func() {
				next, err := lifecycle.Next(lifecycle.StatusApplied, lifecycle.DecisionPass)
				So(err, ShouldBeNil)
				So(next, ShouldEqual, lifecycle.StatusMCQ)

				next, err = lifecycle.Next(lifecycle.StatusScreening, lifecycle.DecisionStrongPass)
				So(err, ShouldBeNil)
				So(next, ShouldEqual, lifecycle.StatusMCQ)

				next, err = lifecycle.Next(lifecycle.StatusMCQ, lifecycle.DecisionPass)
				So(err, ShouldBeNil)
				So(next, ShouldEqual, lifecycle.StatusCoding)

				next, err = lifecycle.Next(lifecycle.StatusInterviewing, lifecycle.DecisionPass)
				So(err, ShouldBeNil)
				So(next, ShouldEqual, lifecycle.StatusShortlisted)
			})
		})

		Convey("When a stage rejects", func() {
			Convey("Then the application should be rejected", func() {
				next, err := lifecycle.Next(lifecycle.StatusCoding, lifecycle.DecisionReject)
				So(err, ShouldBeNil)
				So(next, ShouldEqual, lifecycle.StatusRejected)
			})
		})

		Convey("When a stage is pending or borderline", func() {
			Convey("Then the application should hold in place", func() {
				next, err := lifecycle.Next(lifecycle.StatusBehavioral, lifecycle.DecisionPending)
				So(err, ShouldBeNil)
				So(next, ShouldEqual, lifecycle.StatusBehavioral)

				next, err = lifecycle.Next(lifecycle.StatusBehavioral, lifecycle.DecisionBorderline)
				So(err, ShouldBeNil)
				So(next, ShouldEqual, lifecycle.StatusBehavioral)
			})
		})

		Convey("When the current status is terminal", func() {
			Convey("Then the transition should be refused", func() {
				_, err := lifecycle.Next(lifecycle.StatusRejected, lifecycle.DecisionPass)
				So(err, ShouldWrap, lifecycle.ErrTerminal)

				_, err = lifecycle.Next(lifecycle.StatusHired, lifecycle.DecisionReject)
				So(err, ShouldWrap, lifecycle.ErrTerminal)
			})
		})

		Convey("When the decision is unknown", func() {
			Convey("Then the transition should be refused", func() {
				_, err := lifecycle.Next(lifecycle.StatusApplied, lifecycle.Decision("maybe"))
				So(err, ShouldWrap, lifecycle.ErrBadTransition)
			})
		})
	})
}

func TestDecide(t *testing.T) {
	Convey("Given the decision bands around a threshold of 60", t, func() {
		Convey("Then scores at or above threshold+20 should be strong passes", func() {
			So(lifecycle.Decide(80, 60), ShouldEqual, lifecycle.DecisionStrongPass)
			So(lifecycle.Decide(95, 60), ShouldEqual, lifecycle.DecisionStrongPass)
		})

		Convey("Then scores from the threshold up should pass", func() {
			So(lifecycle.Decide(60, 60), ShouldEqual, lifecycle.DecisionPass)
			So(lifecycle.Decide(79.9, 60), ShouldEqual, lifecycle.DecisionPass)
		})

		Convey("Then scores within 10 below the threshold should be borderline", func() {
			So(lifecycle.Decide(50, 60), ShouldEqual, lifecycle.DecisionBorderline)
			So(lifecycle.Decide(59.9, 60), ShouldEqual, lifecycle.DecisionBorderline)
		})

		Convey("Then anything lower should reject", func() {
			So(lifecycle.Decide(49.9, 60), ShouldEqual, lifecycle.DecisionReject)
			So(lifecycle.Decide(0, 60), ShouldEqual, lifecycle.DecisionReject)
		})
	})
}
