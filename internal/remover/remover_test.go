package remover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/github"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxlau/github-stars-manager/internal/config"
	"github.com/foxlau/github-stars-manager/internal/gh"
	"github.com/foxlau/github-stars-manager/internal/metrics"
	"github.com/foxlau/github-stars-manager/internal/report"
)

// fakeStars answers each unstar with the status configured for the repo,
// 204 by default.
type fakeStars struct {
	status    map[string]int
	errs      map[string]error
	attempted []string
}

func (f *fakeStars) Unstar(ctx context.Context, owner, repo string) (*github.Response, error) {
	name := owner + "/" + repo
	f.attempted = append(f.attempted, name)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	status := http.StatusNoContent
	if s, ok := f.status[name]; ok {
		status = s
	}
	resp := &github.Response{Response: &http.Response{StatusCode: status}}
	if status != http.StatusNoContent {
		return resp, fmt.Errorf("DELETE %s: %d", name, status)
	}
	return resp, nil
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func buildReport(t *testing.T, names ...string) string {
	t.Helper()
	var buf bytes.Buffer
	w := report.NewWriter(&buf)
	for _, name := range names {
		require.NoError(t, w.Write(report.Record{FullName: name, SourceURL: "https://github.com/" + name}))
	}
	require.NoError(t, w.Flush())
	return buf.String()
}

func newTestRemover(stars Unstarrer, sleeper *sleepRecorder) *Remover {
	return New(stars, log.New(ioutil.Discard, "", 0), WithSleep(sleeper.sleep))
}

func TestRemoveRange(t *testing.T) {
	t.Run("only entries in range, in order", func(t *testing.T) {
		stars := &fakeStars{}
		sleeper := &sleepRecorder{}

		sum, err := newTestRemover(stars, sleeper).RemoveRange(context.Background(),
			buildReport(t, "a/b", "c/d", "e/f"), report.Range{Start: 2, End: 3})
		require.NoError(t, err)
		assert.Equal(t, Summary{Success: 2}, sum)
		assert.Equal(t, []string{"c/d", "e/f"}, stars.attempted)
		assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, sleeper.calls)
	})

	t.Run("start after end does nothing", func(t *testing.T) {
		stars := &fakeStars{}
		sleeper := &sleepRecorder{}

		sum, err := newTestRemover(stars, sleeper).RemoveRange(context.Background(),
			buildReport(t, "a/b", "c/d", "e/f"), report.Range{Start: 3, End: 2})
		require.NoError(t, err)
		assert.Equal(t, Summary{}, sum)
		assert.Empty(t, stars.attempted)
	})

	t.Run("empty report", func(t *testing.T) {
		stars := &fakeStars{}

		sum, err := newTestRemover(stars, &sleepRecorder{}).RemoveRange(context.Background(), "", report.FullRange())
		require.NoError(t, err)
		assert.Equal(t, Summary{}, sum)
		assert.Empty(t, stars.attempted)
	})

	t.Run("403 stops the run", func(t *testing.T) {
		stars := &fakeStars{status: map[string]int{"c/d": http.StatusForbidden}}
		sleeper := &sleepRecorder{}

		sum, err := newTestRemover(stars, sleeper).RemoveRange(context.Background(),
			buildReport(t, "a/b", "c/d", "e/f", "g/h"), report.Range{Start: 2, End: 4})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPermissionDenied)

		var pe *PermissionError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, report.Entry{Index: 2, FullName: "c/d"}, pe.Entry)
		assert.Equal(t, Summary{Success: 0, Failed: 1}, pe.Summary)
		assert.Equal(t, Summary{Success: 0, Failed: 1}, sum)
		assert.Equal(t, []string{"c/d"}, stars.attempted)
		assert.Empty(t, sleeper.calls)
	})

	t.Run("500 is counted and the run continues", func(t *testing.T) {
		stars := &fakeStars{status: map[string]int{"e/f": http.StatusInternalServerError}}
		sleeper := &sleepRecorder{}

		sum, err := newTestRemover(stars, sleeper).RemoveRange(context.Background(),
			buildReport(t, "a/b", "c/d", "e/f", "g/h", "i/j"), report.FullRange())
		require.NoError(t, err)
		assert.Equal(t, Summary{Success: 4, Failed: 1}, sum)
		assert.Equal(t, []string{"a/b", "c/d", "e/f", "g/h", "i/j"}, stars.attempted)
		assert.Len(t, sleeper.calls, 4)
	})

	t.Run("transport error is recoverable", func(t *testing.T) {
		stars := &fakeStars{errs: map[string]error{"a/b": errors.New("dial tcp: timeout")}}

		sum, err := newTestRemover(stars, &sleepRecorder{}).RemoveRange(context.Background(),
			buildReport(t, "a/b", "c/d"), report.FullRange())
		require.NoError(t, err)
		assert.Equal(t, Summary{Success: 1, Failed: 1}, sum)
		assert.Equal(t, []string{"a/b", "c/d"}, stars.attempted)
	})

	t.Run("identifier without slash is not sent", func(t *testing.T) {
		stars := &fakeStars{}
		text := "Repository [1]: noslash\n" + report.Delimiter + "\n" + "Repository [2]: a/b\n"

		sum, err := newTestRemover(stars, &sleepRecorder{}).RemoveRange(context.Background(), text, report.FullRange())
		require.NoError(t, err)
		assert.Equal(t, Summary{Success: 1, Failed: 1}, sum)
		assert.Equal(t, []string{"a/b"}, stars.attempted)
	})

	t.Run("cancelled context stops before next entry", func(t *testing.T) {
		stars := &fakeStars{}
		ctx, cancel := context.WithCancel(context.Background())
		sleeper := func(ctx context.Context, d time.Duration) error {
			cancel()
			return nil
		}
		r := New(stars, log.New(ioutil.Discard, "", 0), WithSleep(sleeper))

		sum, err := r.RemoveRange(ctx, buildReport(t, "a/b", "c/d"), report.FullRange())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, Summary{Success: 1}, sum)
		assert.Equal(t, []string{"a/b"}, stars.attempted)
	})

	t.Run("progress output", func(t *testing.T) {
		var logs bytes.Buffer
		stars := &fakeStars{status: map[string]int{"c/d": http.StatusNotFound}}
		r := New(stars, log.New(&logs, "", 0), WithDelay(0))

		_, err := r.RemoveRange(context.Background(), buildReport(t, "a/b", "c/d"), report.FullRange())
		require.NoError(t, err)

		out := logs.String()
		assert.Contains(t, out, "Found 2 starred repositories")
		assert.Contains(t, out, "Processing 2 repositories (from #1 to #2)")
		assert.Contains(t, out, "✓ [1] Unstarred: a/b")
		assert.Contains(t, out, "✗ [2] Failed to unstar: c/d")
		assert.True(t, strings.HasSuffix(out, "Completed!\nSuccess: 1, Failed: 1\n"))
	})
}

func TestRemoveRangeAgainstServer(t *testing.T) {
	var deleted []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/user/starred/"))
		switch r.URL.Path {
		case "/user/starred/c/d":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
		case "/user/starred/g/h":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"Resource not accessible by personal access token"}`)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Token = "secret"
	cfg.APIURL = server.URL
	client, err := gh.NewClient(context.Background(), cfg)
	require.NoError(t, err)

	r := New(gh.NewStars(client, 0), log.New(ioutil.Discard, "", 0), WithDelay(0))
	sum, err := r.RemoveRange(context.Background(),
		buildReport(t, "a/b", "c/d", "e/f", "g/h", "i/j"), report.FullRange())

	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, Summary{Success: 2, Failed: 2}, sum)
	assert.Equal(t, []string{"a/b", "c/d", "e/f", "g/h"}, deleted)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestRemoveRangeRecordsMetrics(t *testing.T) {
	m := metrics.New()
	stars := &fakeStars{status: map[string]int{
		"c/d": http.StatusNotFound,
		"g/h": http.StatusForbidden,
	}}
	text := buildReport(t, "a/b", "c/d", "noslash", "e/f", "g/h")
	r := New(stars, log.New(ioutil.Discard, "", 0), WithDelay(0), WithMetrics(m))

	_, err := r.RemoveRange(context.Background(), text, report.FullRange())
	require.ErrorIs(t, err, ErrPermissionDenied)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UnstarredTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnstarFailures.WithLabelValues(metrics.ReasonStatus)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnstarFailures.WithLabelValues(metrics.ReasonIdentifier)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnstarFailures.WithLabelValues(metrics.ReasonPermission)))
}
