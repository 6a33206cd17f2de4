// Package remover unstars a range of repositories recorded in a report.
package remover

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/go-github/github"

	"github.com/foxlau/github-stars-manager/internal/gh"
	"github.com/foxlau/github-stars-manager/internal/metrics"
	"github.com/foxlau/github-stars-manager/internal/report"
)

// ErrPermissionDenied means the token cannot unstar repositories; no
// further entry is attempted once it is seen.
var ErrPermissionDenied = errors.New("token permission insufficient, please check token scope")

// Unstarrer removes one star.
type Unstarrer interface {
	Unstar(ctx context.Context, owner, repo string) (*github.Response, error)
}

// Summary counts the outcome of a run.
type Summary struct {
	Success int
	Failed  int
}

func (s Summary) String() string {
	return fmt.Sprintf("Success: %d, Failed: %d", s.Success, s.Failed)
}

// PermissionError aborts a run on a 403 response.
type PermissionError struct {
	Entry   report.Entry
	Summary Summary
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("[%d] %s: %v", e.Entry.Index, e.Entry.FullName, ErrPermissionDenied)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// Remover unstars report entries one at a time.
type Remover struct {
	stars   Unstarrer
	delay   time.Duration
	logger  *log.Logger
	metrics metrics.Recorder
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Remover.
type Option func(*Remover)

// WithDelay sets the pause after each successful unstar.
func WithDelay(d time.Duration) Option {
	return func(r *Remover) {
		r.delay = d
	}
}

// WithSleep replaces the pacing function.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Remover) {
		r.sleep = sleep
	}
}

// WithMetrics sets the recorder for unstar outcomes.
func WithMetrics(rec metrics.Recorder) Option {
	return func(r *Remover) {
		r.metrics = rec
	}
}

// New .
func New(stars Unstarrer, logger *log.Logger, opts ...Option) *Remover {
	r := &Remover{
		stars:   stars,
		delay:   500 * time.Millisecond,
		logger:  logger,
		metrics: metrics.Nop{},
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RemoveRange unstars every entry of reportText whose index lies in rng,
// in report order. A 403 stops the run with a *PermissionError; any other
// failure is counted and the run goes on.
func (r *Remover) RemoveRange(ctx context.Context, reportText string, rng report.Range) (Summary, error) {
	all := report.Parse(reportText)
	r.logger.Printf("Found %d starred repositories", len(all))

	todo := report.Filter(all, rng)
	r.logger.Printf("Processing %d repositories (from #%d to #%d)", len(todo), rng.Start, min(rng.End, len(all)))

	var sum Summary
	for _, e := range todo {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		err := r.unstar(ctx, e)
		if err == nil {
			r.logger.Printf("✓ [%d] Unstarred: %s", e.Index, e.FullName)
			sum.Success++
			r.metrics.Unstarred()
			if err := r.sleep(ctx, r.delay); err != nil {
				return sum, err
			}
			continue
		}

		if errors.Is(err, ErrPermissionDenied) {
			sum.Failed++
			r.metrics.UnstarFailed(metrics.ReasonPermission)
			r.logger.Printf("✗ [%d] Permission error: %s", e.Index, e.FullName)
			r.logger.Println("Token permission insufficient, please check token scope")
			r.logger.Println(sum)
			return sum, &PermissionError{Entry: e, Summary: sum}
		}

		sum.Failed++
		r.metrics.UnstarFailed(reason(err))
		r.logger.Printf("✗ [%d] Failed to unstar: %s %v", e.Index, e.FullName, err)
	}

	r.logger.Println("Completed!")
	r.logger.Println(sum)
	return sum, nil
}

// statusError is a non-204 answer to an unstar request.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("unexpected status %d", e.status)
}

func (e *statusError) Unwrap() error { return e.err }

var errBadIdentifier = errors.New("identifier is not owner/name")

func (r *Remover) unstar(ctx context.Context, e report.Entry) error {
	owner, name, ok := e.OwnerName()
	if !ok {
		return errBadIdentifier
	}

	resp, err := r.stars.Unstar(ctx, owner, name)
	switch status := gh.StatusCode(resp); {
	case status == http.StatusForbidden:
		if err == nil {
			return ErrPermissionDenied
		}
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case status == http.StatusNoContent && err == nil:
		return nil
	case status != 0:
		return &statusError{status: status, err: err}
	case err != nil:
		return err
	default:
		return errors.New("no response")
	}
}

func reason(err error) string {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return metrics.ReasonStatus
	case errors.Is(err, errBadIdentifier):
		return metrics.ReasonIdentifier
	default:
		return metrics.ReasonTransport
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
