package generator

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Sentinel model identifiers reported when no real model produced the answer.
const (
	// ModelNone marks the short-circuit answer for an empty context.
	ModelNone = "none"
	// ModelFallbackContext marks the degraded answer built from raw context
	// after every model in the chain was exhausted.
	ModelFallbackContext = "fallback-context"
)

const (
	noContextAnswer = "No relevant information was found in the indexed documents."
	fallbackPrefix  = "Based on the indexed documents, here is relevant information:\n\n"
)

// modelState tracks a model's progress through its retry budget.
type modelState int

const (
	statePending modelState = iota
	stateRetrying
	stateSucceeded
	stateExhausted
)

func (s modelState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateRetrying:
		return "retrying"
	case stateSucceeded:
		return "succeeded"
	case stateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Config controls retry and timeout policy. Models is the ordered fallback
// chain; earlier entries are preferred.
type Config struct {
	Models            []string
	MaxRetries        int           // attempts per model
	Timeout           time.Duration // hard deadline per attempt
	BackoffBase       time.Duration // delay before the first retry
	BackoffMultiplier float64
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 2
	}
}

// Result is a generated answer and the model that produced it. Model is one
// of the configured chain entries, or a sentinel.
type Result struct {
	Answer string
	Model  string
}

// Generator runs the fallback chain over a ChatClient.
type Generator struct {
	client ChatClient
	cfg    Config
	logger *zap.Logger
}

// New creates a Generator. A nil logger disables logging.
func New(client ChatClient, cfg Config, logger *zap.Logger) *Generator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, cfg: cfg, logger: logger}
}

// Generate answers question from contextChunks. With no chunks it returns the
// no-context answer immediately, without contacting any model. Otherwise it
// walks the model chain in order, giving each model MaxRetries attempts with
// exponential backoff, and returns the first non-empty answer. If every model
// is exhausted it degrades to echoing the raw context. The only error
// returned is ctx's, when the caller gives up mid-chain.
func (g *Generator) Generate(ctx context.Context, question string, contextChunks []string) (*Result, error) {
	if len(contextChunks) == 0 {
		return &Result{Answer: noContextAnswer, Model: ModelNone}, nil
	}
	contextBlock := JoinContext(contextChunks)
	userPrompt := buildUserPrompt(question, contextBlock)

	for _, model := range g.cfg.Models {
		answer, state, err := g.tryModel(ctx, model, userPrompt)
		if err != nil {
			return nil, err
		}
		if state == stateSucceeded {
			return &Result{Answer: answer, Model: model}, nil
		}
		g.logger.Warn("model exhausted, falling back",
			zap.String("model", model),
			zap.Int("attempts", g.cfg.MaxRetries))
	}

	g.logger.Warn("all models exhausted, answering from raw context",
		zap.Int("models", len(g.cfg.Models)))
	return &Result{Answer: fallbackPrefix + contextBlock, Model: ModelFallbackContext}, nil
}

// tryModel runs up to MaxRetries attempts against one model. It returns an
// error only when ctx is done; attempt failures are absorbed into the state.
func (g *Generator) tryModel(ctx context.Context, model, userPrompt string) (string, modelState, error) {
	delay := backoff.NewExponentialBackOff()
	delay.InitialInterval = g.cfg.BackoffBase
	delay.Multiplier = g.cfg.BackoffMultiplier
	delay.MaxElapsedTime = 0

	state := statePending
	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", state, err
		}
		answer, err := g.attempt(ctx, model, userPrompt)
		if err == nil && strings.TrimSpace(answer) != "" {
			return answer, stateSucceeded, nil
		}
		g.logger.Warn("attempt failed",
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == g.cfg.MaxRetries {
			break
		}
		state = stateRetrying
		select {
		case <-time.After(delay.NextBackOff()):
		case <-ctx.Done():
			return "", state, ctx.Err()
		}
	}
	return "", stateExhausted, nil
}

// attempt runs one completion call under the per-attempt timeout. The call
// runs in its own goroutine with a buffered channel, so an attempt that
// finishes after the deadline is discarded instead of leaking.
func (g *Generator) attempt(parent context.Context, model, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, g.cfg.Timeout)
	defer cancel()

	type outcome struct {
		answer string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		answer, err := g.client.Complete(ctx, model, systemPrompt, userPrompt)
		done <- outcome{answer: answer, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return "", out.err
		}
		return out.answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
