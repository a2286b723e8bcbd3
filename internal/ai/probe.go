package ai

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const (
	probePrompt     = "Reply with OK"
	probeMaxTokens  = 10
	probeReplyRunes = 50
)

// CandidateBedrockModels are inference profiles and model ids tried by a probe, best first
var CandidateBedrockModels = []string{
	"us.anthropic.claude-sonnet-4-6",
	"global.anthropic.claude-sonnet-4-6",
	"anthropic.claude-sonnet-4-6",
	"us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	"us.anthropic.claude-3-5-sonnet-20241022-v2:0",
	"us.anthropic.claude-3-5-sonnet-v2:0",
	"us.anthropic.claude-3-5-haiku-20241022-v1:0",
	"us.anthropic.claude-3-haiku-20240307-v1:0",
}

// ProbeResult is the outcome of one minimal model call
type ProbeResult struct {
	ModelID string
	Reply   string
	Err     error
}

// OK reports whether the model answered
func (r ProbeResult) OK() bool {
	return r.Err == nil
}

// ProbeModels sends a minimal prompt to each model with at most limit calls
// in flight. Results keep the input order.
func ProbeModels(ctx context.Context, models []ModelInvoker, limit int) []ProbeResult {
	results := make([]ProbeResult, len(models))
	if limit <= 0 {
		limit = 4
	}

	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, m := range models {
		eg.Go(func() error {
			results[i] = probe(ctx, m)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func probe(ctx context.Context, m ModelInvoker) ProbeResult {
	res := ProbeResult{ModelID: m.Name()}
	resp, err := m.Converse(ctx, &ConverseRequest{Prompt: probePrompt, MaxTokens: probeMaxTokens})
	if err != nil {
		res.Err = err
		return res
	}
	res.Reply = truncateRunes(resp.Text(), probeReplyRunes)
	return res
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// FirstWorking returns the first model id that answered, or "" if none did
func FirstWorking(results []ProbeResult) string {
	for _, r := range results {
		if r.OK() {
			return r.ModelID
		}
	}
	return ""
}
