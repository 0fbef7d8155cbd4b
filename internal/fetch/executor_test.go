package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleeps struct {
	waits []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newTestExecutor(retries int, sleeps *recordedSleeps) *Executor {
	opts := Options{
		MaxRetries: retries,
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Timeout:    time.Second,
		UserAgents: []string{"agent-a", "agent-b"},
	}
	return NewExecutor(opts, nil).WithSleep(sleeps.sleep)
}

func TestGetJSONSuccess(t *testing.T) {
	var gotUA, gotAccept, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.Query().Get("nm")
		w.Write([]byte(`{"data":{"value":7}}`))
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	ex := newTestExecutor(3, sleeps)

	var out struct {
		Data struct {
			Value int `json:"value"`
		} `json:"data"`
	}
	err := ex.GetJSON(context.Background(), srv.URL+"/cards/detail", url.Values{"nm": {"123"}}, &out)
	require.NoError(t, err)

	assert.Equal(t, 7, out.Data.Value)
	assert.Equal(t, "123", gotQuery)
	assert.Contains(t, []string{"agent-a", "agent-b"}, gotUA)
	assert.Equal(t, "application/json, text/plain, */*", gotAccept)
	assert.Empty(t, sleeps.waits)
}

func TestGetJSONRetriesThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.Write([]byte(`not json`))
		default:
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	ex := newTestExecutor(3, sleeps)

	var out map[string]bool
	require.NoError(t, ex.GetJSON(context.Background(), srv.URL, nil, &out))

	assert.True(t, out["ok"])
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
	require.Len(t, sleeps.waits, 2)
	assert.InDelta(t, float64(time.Second), float64(sleeps.waits[0]), float64(100*time.Millisecond))
	assert.InDelta(t, float64(2*time.Second), float64(sleeps.waits[1]), float64(200*time.Millisecond))
}

func TestGetJSONExhaustsRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	ex := newTestExecutor(3, sleeps)

	var out map[string]any
	err := ex.GetJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
	// no wait after the final attempt
	assert.Len(t, sleeps.waits, 2)
}

func TestGetJSONKeepsUnexpectedShape(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"data":[],"total":3}`))
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	ex := newTestExecutor(3, sleeps)

	var out struct {
		Data struct {
			Value int `json:"value"`
		} `json:"data"`
		Total int `json:"total"`
	}
	err := ex.GetJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)

	assert.Equal(t, 0, out.Data.Value)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, sleeps.waits)
}

func TestGetJSONStopsOnCancelledSleep(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ex := NewExecutor(Options{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out map[string]any
	err := ex.GetJSON(ctx, srv.URL, nil, &out)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestBuildURLMergesParams(t *testing.T) {
	got, err := buildURL("https://example.com/path?spp=0&nm=1", url.Values{"nm": {"2"}, "page": {"3"}})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "0", u.Query().Get("spp"))
	assert.Equal(t, "2", u.Query().Get("nm"))
	assert.Equal(t, "3", u.Query().Get("page"))
}
