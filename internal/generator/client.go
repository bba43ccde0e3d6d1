// Package generator produces grounded answers from retrieved context via a
// remote LLM, with an ordered model fallback chain, per-model retries, and a
// hard timeout per attempt.
package generator

import "context"

// ChatClient sends one chat completion request to a remote LLM. The attempt
// deadline is carried by ctx; implementations must honor cancellation.
type ChatClient interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}
