// Package gh wires the GitHub REST client used by the stars commands.
package gh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/github"
	"golang.org/x/oauth2"

	"github.com/foxlau/github-stars-manager/internal/config"
)

// NewClient returns a GitHub client authenticated with cfg.Token.
func NewClient(ctx context.Context, cfg *config.Config) (*github.Client, error) {
	if cfg.Token == "" {
		return nil, config.ErrMissingToken
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	)
	tc := oauth2.NewClient(ctx, ts)
	// the timeout lives in the transport; http.Client.Timeout would wrap
	// the recorded body
	tc.Transport = &recordingTransport{base: tc.Transport, timeout: cfg.HTTPTimeout}

	client := github.NewClient(tc)
	if cfg.APIURL != "" {
		base := cfg.APIURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid api url %q: %w", cfg.APIURL, err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// Stars exposes the starring endpoints of the authenticated user.
type Stars struct {
	activity *github.ActivityService
	perPage  int
}

// NewStars .
func NewStars(client *github.Client, perPage int) *Stars {
	return &Stars{activity: client.Activity, perPage: perPage}
}

// ListStarred fetches one 1-based page of the user's starred repositories.
func (s *Stars) ListStarred(ctx context.Context, page int) ([]*github.Repository, *github.Response, error) {
	opt := &github.ActivityListStarredOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: s.perPage},
	}
	// empty user means the authenticated user
	starred, resp, err := s.activity.ListStarred(ctx, "", opt)
	if err != nil {
		return nil, resp, err
	}
	// go-github treats an empty body as an empty list; only a decoded
	// "[]" or "null" ends the listing.
	if len(starred) == 0 && resp != nil {
		if raw, ok := RawBody(resp.Response); ok && len(bytes.TrimSpace(raw)) == 0 {
			return nil, resp, ErrEmptyBody
		}
	}

	repos := make([]*github.Repository, 0, len(starred))
	for _, st := range starred {
		if st == nil || st.Repository == nil {
			continue
		}
		repos = append(repos, st.Repository)
	}
	return repos, resp, nil
}

// Unstar removes the star from owner/repo.
func (s *Stars) Unstar(ctx context.Context, owner, repo string) (*github.Response, error) {
	return s.activity.Unstar(ctx, owner, repo)
}

// ErrEmptyBody is returned for a listing response without a body.
var ErrEmptyBody = errors.New("empty response body")

// recordedBody is a response body that keeps its bytes after being read.
type recordedBody struct {
	*bytes.Reader
	data []byte
}

func (b *recordedBody) Close() error { return nil }

// recordingTransport buffers every response body so the raw text stays
// available once go-github has decoded or discarded it. A non-zero timeout
// bounds the whole exchange, body included.
type recordingTransport struct {
	base    http.RoundTripper
	timeout time.Duration
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	data, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = &recordedBody{Reader: bytes.NewReader(data), data: data}
	return resp, nil
}

// RawBody returns the body of resp as received. ok is false when resp did
// not go through a client built by NewClient.
func RawBody(resp *http.Response) (raw []byte, ok bool) {
	if resp == nil {
		return nil, false
	}
	b, ok := resp.Body.(*recordedBody)
	if !ok {
		return nil, false
	}
	return b.data, true
}

// StatusCode returns the HTTP status of resp, or 0 when no response was
// received.
func StatusCode(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
