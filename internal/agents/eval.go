package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/sift/internal/adapters/llm"
	"github.com/okian/sift/pkg/logger"
	"github.com/okian/sift/pkg/metrics"
)

// askJSON sends one completion and decodes the JSON object in the
// reply. A reply with no parseable JSON or a missing required field
// degrades to the neutral default score rather than failing the stage:
// the degradation is logged, counted, and marked in the returned raw
// payload so it stays visible downstream. Transport errors are not
// absorbed; the invocation can be retried.
func askJSON(ctx context.Context, client llm.Client, log logger.Logger, stage, system, user string, out any, required ...string) (map[string]any, bool, error) {
	reply, err := client.Complete(ctx, system, user)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", llm.ErrGateway, err)
	}
	if err := llm.Unmarshal(reply, out, required...); err != nil {
		metrics.RecordLLMFallback(stage)
		log.Warn(ctx, "unusable model reply, falling back to default score",
			logger.String("stage", stage),
			logger.Error(err),
		)
		return map[string]any{"fallback": true, "reply": truncate(reply, 500)}, true, nil
	}
	return map[string]any{"fallback": false}, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// payloadString reads an optional string field from a task payload.
func payloadString(payload map[string]any, key string) (string, bool) {
	if payload == nil {
		return "", false
	}
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// payloadAnswers reads a question-id to option-index map from a task
// payload. JSON decoding hands numbers over as float64.
func payloadAnswers(payload map[string]any, key string) (map[string]int, bool) {
	if payload == nil {
		return nil, false
	}
	raw, ok := payload[key].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, false
	}
	answers := make(map[string]int, len(raw))
	for id, v := range raw {
		switch n := v.(type) {
		case float64:
			answers[id] = int(n)
		case int:
			answers[id] = n
		default:
			return nil, false
		}
	}
	return answers, true
}
