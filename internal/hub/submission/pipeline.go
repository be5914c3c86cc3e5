// Package submission runs one external call per form submission and turns its
// result into an outcome the page can render.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"musanzehub.com/hub-web/internal/hub/observability"
)

var tracer = otel.Tracer("musanzehub.com/hub-web/internal/hub/submission")

// ErrInFlight is returned when a submission for the same key is already running.
var ErrInFlight = errors.New("submission: already in flight")

// DefaultFailureMessage is shown when an error carries no user-facing message.
const DefaultFailureMessage = "Something went wrong. Please try again later."

// Status discriminates outcomes.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the settled result of a submission.
type Outcome struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Idle is the outcome before any attempt.
func Idle() Outcome { return Outcome{Status: StatusIdle} }

// Success is the outcome of a call that returned nil.
func Success() Outcome { return Outcome{Status: StatusSuccess} }

// Failure is the outcome of a call that failed, with the message to display.
func Failure(message string) Outcome { return Outcome{Status: StatusFailure, Message: message} }

// Succeeded reports a successful outcome.
func (o Outcome) Succeeded() bool { return o.Status == StatusSuccess }

// Failed reports a failed outcome.
func (o Outcome) Failed() bool { return o.Status == StatusFailure }

// Error carries a user-facing message for stub and booking failures.
type Error struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return "submission: " + e.Message
	}
	return fmt.Sprintf("submission: %s: %v", e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Call is the external work a submission performs.
type Call func(ctx context.Context) error

// Delay returns a Call that stands in for a remote request by waiting d.
func Delay(d time.Duration) Call {
	return func(ctx context.Context) error {
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithMessages sets the mapping from errors without an explicit message to banner text.
func WithMessages(fn func(error) string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.messages = fn
		}
	}
}

// Pipeline serialises submissions per key.
type Pipeline struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	messages func(error) string
}

// New constructs a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		inflight: make(map[string]struct{}),
		messages: func(error) string { return DefaultFailureMessage },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Run invokes call unless another call for key is still running, in which case
// it returns ErrInFlight without invoking call. Errors and panics from call are
// reported through the outcome. The call outlives cancellation of ctx.
func (p *Pipeline) Run(ctx context.Context, key string, call Call) (Outcome, error) {
	if !p.acquire(key) {
		return Outcome{}, ErrInFlight
	}
	defer p.release(key)

	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "submission.Run")
	defer span.End()
	span.SetAttributes(attribute.String("submission.key", key))

	logger := observability.FromContext(ctx)
	started := time.Now()

	err := safeCall(ctx, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		logger.Warn("submission failed",
			zap.String("key", key),
			zap.Duration("latency", time.Since(started)),
			zap.Error(err),
		)
		return Failure(p.message(err)), nil
	}

	logger.Info("submission succeeded",
		zap.String("key", key),
		zap.Duration("latency", time.Since(started)),
	)
	return Success(), nil
}

// InFlight reports whether key has a running submission.
func (p *Pipeline) InFlight(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[key]
	return ok
}

func (p *Pipeline) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[key]; busy {
		return false
	}
	p.inflight[key] = struct{}{}
	return true
}

func (p *Pipeline) release(key string) {
	p.mu.Lock()
	delete(p.inflight, key)
	p.mu.Unlock()
}

func (p *Pipeline) message(err error) string {
	var subErr *Error
	if errors.As(err, &subErr) && subErr.Message != "" {
		return subErr.Message
	}
	if msg := p.messages(err); msg != "" {
		return msg
	}
	return DefaultFailureMessage
}

func safeCall(ctx context.Context, call Call) (err error) {
	if call == nil {
		return errors.New("submission: nil call")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("submission: panic: %v", rec)
		}
	}()
	return call(ctx)
}
