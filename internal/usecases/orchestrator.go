package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/interfaces"
	log "github.com/sirupsen/logrus"
)

const (
	MaxContinuations         = 5
	ContinuationOutputTokens = 2000
	FallbackOutputTokens     = 2000
	FallbackImageTimeout     = 180 * time.Second
	FallbackTextTimeout      = 120 * time.Second
)

var (
	ErrProviderTimeout       = errors.New("orchestrator: provider timed out")
	ErrProviderError         = errors.New("orchestrator: provider failed")
	ErrEmptyResponse         = errors.New("orchestrator: provider returned empty text")
	ErrAllProvidersExhausted = errors.New("orchestrator: all providers exhausted")
)

// ProviderFailure is one failed attempt in the fallback chain. Kind is one of
// ErrProviderTimeout, ErrProviderError or ErrEmptyResponse.
type ProviderFailure struct {
	Provider string
	Kind     error
	Err      error
}

func (f ProviderFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %v", f.Provider, f.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", f.Provider, f.Kind, f.Err)
}

func (f ProviderFailure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

// ExhaustedError is returned when no provider produced text. It matches
// ErrAllProvidersExhausted with errors.Is.
type ExhaustedError struct {
	Failures []ProviderFailure
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return ErrAllProvidersExhausted.Error() + ": no provider configured"
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return ErrAllProvidersExhausted.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// Query is one question to answer.
type Query struct {
	Question string
	Media    *entities.Media
	SizeHint int // input length used for model selection; 0 means len(Question)
}

type Metadata struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	TotalTokens   int    `json:"total_tokens"`
	Continuations int    `json:"continuations"`
	Attempts      int    `json:"attempts"`
}

type Result struct {
	Text     string
	Metadata Metadata
}

// Orchestrator runs the provider fallback chain. The first provider is the
// primary: it gets the selected model and may continue incomplete answers.
type Orchestrator struct {
	providers    []interfaces.CompletionProvider
	systemPrompt string
	timeoutCap   time.Duration
}

func NewOrchestrator(systemPrompt string, providers ...interfaces.CompletionProvider) *Orchestrator {
	return &Orchestrator{providers: providers, systemPrompt: systemPrompt}
}

// WithTimeoutCap bounds every attempt's deadline by d. Zero keeps the
// selected deadlines.
func (o *Orchestrator) WithTimeoutCap(d time.Duration) *Orchestrator {
	o.timeoutCap = d
	return o
}

// Complete answers q with the first provider that returns non-blank text.
// Each provider is tried at most once, in order, under its own deadline.
func (o *Orchestrator) Complete(ctx context.Context, q Query) (*Result, error) {
	hasImage := q.Media != nil
	size := q.SizeHint
	if size == 0 {
		size = len([]rune(q.Question))
	}
	sel := SelectModel(hasImage, size)
	prompt := BuildPrompt(o.systemPrompt, q.Question)

	fallbackTimeout := FallbackTextTimeout
	if hasImage {
		fallbackTimeout = FallbackImageTimeout
	}

	var failures []ProviderFailure
	attempts := 0
	for i, p := range o.providers {
		if !p.Configured() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("completion aborted: %w", err)
		}
		attempts++

		req := entities.CompletionRequest{Prompt: prompt, Media: q.Media}
		timeout := fallbackTimeout
		if i == 0 {
			req.Model = sel.Model
			req.MaxOutputTokens = sel.MaxOutputTokens
			timeout = sel.Timeout
		} else {
			req.MaxOutputTokens = FallbackOutputTokens
		}

		logger := log.WithFields(log.Fields{
			"provider":  p.Name(),
			"model":     req.Model,
			"has_image": hasImage,
			"timeout":   timeout.String(),
		})
		logger.Info("Attempting completion")

		resp, err := o.invoke(ctx, p, req, timeout)
		if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
			err = ProviderFailure{Provider: p.Name(), Kind: ErrEmptyResponse}
		}
		if err != nil {
			var failure ProviderFailure
			if !errors.As(err, &failure) {
				failure = ProviderFailure{Provider: p.Name(), Kind: ErrProviderError, Err: err}
			}
			logger.WithError(failure).Warn("Completion attempt failed")
			failures = append(failures, failure)
			continue
		}

		result := &Result{
			Text: resp.Text,
			Metadata: Metadata{
				Provider:    p.Name(),
				Model:       resp.Model,
				TotalTokens: resp.TotalTokens,
				Attempts:    attempts,
			},
		}
		if result.Metadata.Model == "" {
			result.Metadata.Model = req.Model
		}
		if i == 0 {
			o.continueResponse(ctx, p, req.Model, timeout, resp, result)
		}

		logger.WithFields(log.Fields{
			"chars":         len(result.Text),
			"tokens":        result.Metadata.TotalTokens,
			"continuations": result.Metadata.Continuations,
		}).Info("Completion succeeded")
		return result, nil
	}

	return nil, &ExhaustedError{Failures: failures}
}

// continueResponse follows continuation handles on the primary provider and
// appends each fragment to result. A failed follow-up ends the loop and keeps
// what was already received.
func (o *Orchestrator) continueResponse(ctx context.Context, p interfaces.CompletionProvider, model string, timeout time.Duration, resp *entities.CompletionResponse, result *Result) {
	for resp.Status == entities.StatusIncomplete && resp.ContinuationHandle != "" && result.Metadata.Continuations < MaxContinuations {
		result.Metadata.Continuations++

		next, err := o.invoke(ctx, p, entities.CompletionRequest{
			Model:              model,
			MaxOutputTokens:    ContinuationOutputTokens,
			ContinuationHandle: resp.ContinuationHandle,
		}, timeout)
		if err != nil {
			log.WithFields(log.Fields{
				"provider": p.Name(),
				"attempt":  result.Metadata.Continuations,
			}).WithError(err).Warn("Continuation failed, returning partial answer")
			return
		}
		if next == nil {
			return
		}

		result.Text += next.Text
		result.Metadata.TotalTokens += next.TotalTokens
		resp = next
	}
}

// invoke calls p under a hard deadline. The deadline holds even if the
// provider ignores its context.
func (o *Orchestrator) invoke(ctx context.Context, p interfaces.CompletionProvider, req entities.CompletionRequest, timeout time.Duration) (*entities.CompletionResponse, error) {
	if o.timeoutCap > 0 && timeout > o.timeoutCap {
		timeout = o.timeoutCap
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		resp *entities.CompletionResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := p.Invoke(callCtx, req)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, ProviderFailure{Provider: p.Name(), Kind: ErrProviderTimeout, Err: out.err}
			}
			return nil, ProviderFailure{Provider: p.Name(), Kind: ErrProviderError, Err: out.err}
		}
		return out.resp, nil
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, ProviderFailure{Provider: p.Name(), Kind: ErrProviderTimeout, Err: fmt.Errorf("no response within %s", timeout)}
		}
		return nil, ProviderFailure{Provider: p.Name(), Kind: ErrProviderError, Err: callCtx.Err()}
	}
}
