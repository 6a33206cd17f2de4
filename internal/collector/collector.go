// Package collector walks the authenticated user's starred repositories and
// writes them to a report.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-github/github"

	"github.com/foxlau/github-stars-manager/internal/gh"
	"github.com/foxlau/github-stars-manager/internal/metrics"
	"github.com/foxlau/github-stars-manager/internal/report"
)

// Lister fetches one 1-based page of starred repositories.
type Lister interface {
	ListStarred(ctx context.Context, page int) ([]*github.Repository, *github.Response, error)
}

// ListError reports a page that could not be fetched or decoded.
type ListError struct {
	Page       int
	StatusCode int
	Body       string
	Err        error
}

func (e *ListError) Error() string {
	msg := fmt.Sprintf("API request failed on page %d", e.Page)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ListError) Unwrap() error { return e.Err }

// pager yields pages 1, 2, ... and stops at the first empty one.
type pager struct {
	stars   Lister
	metrics metrics.Recorder
	page    int
	done    bool
}

func newPager(stars Lister, rec metrics.Recorder) *pager {
	return &pager{stars: stars, metrics: rec, page: 1}
}

// Next returns the next non-empty page. more is false once an empty page
// has been seen; Next must not be called again after that or after an error.
func (p *pager) Next(ctx context.Context) (repos []*github.Repository, more bool, err error) {
	if p.done {
		return nil, false, nil
	}
	page := p.page
	repos, resp, err := p.stars.ListStarred(ctx, page)
	p.metrics.PageFetched()
	if err != nil {
		p.done = true
		return nil, false, newListError(page, resp, err)
	}
	if status := gh.StatusCode(resp); resp != nil && status != http.StatusOK {
		p.done = true
		return nil, false, newListError(page, resp, nil)
	}
	p.page++
	if len(repos) == 0 {
		p.done = true
		return nil, false, nil
	}
	return repos, true, nil
}

// newListError keeps the raw response body when the client recorded one,
// and falls back to the decoded GitHub error message.
func newListError(page int, resp *github.Response, err error) *ListError {
	le := &ListError{Page: page, StatusCode: gh.StatusCode(resp), Err: err}
	if resp != nil {
		if raw, ok := gh.RawBody(resp.Response); ok {
			le.Body = strings.TrimSpace(string(raw))
			return le
		}
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) {
		le.Body = er.Message
		for _, fe := range er.Errors {
			le.Body += " " + fe.Error()
		}
	}
	return le
}

// Collector writes every starred repository to a report.
type Collector struct {
	stars   Lister
	logger  *log.Logger
	metrics metrics.Recorder
}

// Option configures a Collector.
type Option func(*Collector)

// WithMetrics sets the recorder for pages and records.
func WithMetrics(rec metrics.Recorder) Option {
	return func(c *Collector) {
		c.metrics = rec
	}
}

// New .
func New(stars Lister, logger *log.Logger, opts ...Option) *Collector {
	c := &Collector{stars: stars, logger: logger, metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect writes one record per starred repository to w and returns how
// many were written. Records written before an error are flushed to w.
func (c *Collector) Collect(ctx context.Context, w io.Writer) (int, error) {
	rw := report.NewWriter(w)
	p := newPager(c.stars, c.metrics)

	for {
		c.logger.Printf("Fetching page %d...", p.page)
		repos, more, err := p.Next(ctx)
		if err != nil {
			if ferr := rw.Flush(); ferr != nil {
				c.logger.Printf("flush report: %v", ferr)
			}
			return rw.Count(), err
		}
		if !more {
			c.logger.Println("No more repositories")
			break
		}

		for _, repo := range repos {
			if err := rw.Write(toRecord(repo)); err != nil {
				return rw.Count(), fmt.Errorf("write report: %w", err)
			}
			c.metrics.Collected()
		}
	}

	if err := rw.Flush(); err != nil {
		return rw.Count(), fmt.Errorf("write report: %w", err)
	}
	c.logger.Printf("Done! Processed %d repositories", rw.Count())
	return rw.Count(), nil
}

// CollectFile truncates path and collects into it.
func (c *Collector) CollectFile(ctx context.Context, path string) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report: %w", cerr)
		}
	}()

	n, err = c.Collect(ctx, f)
	if err != nil {
		return n, err
	}
	c.logger.Printf("Results saved to %s", path)
	return n, nil
}

func toRecord(repo *github.Repository) report.Record {
	return report.Record{
		FullName:  repo.GetFullName(),
		SourceURL: repo.GetSVNURL(),
		Homepage:  repo.Homepage,
		Stars:     repo.GetStargazersCount(),
		Language:  repo.Language,
		Topics:    repo.Topics,
	}
}
