package jobmetrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedPush struct {
	method string
	path   string
	body   []byte
}

func newGateway(t *testing.T) (*httptest.Server, func() []capturedPush) {
	t.Helper()
	var (
		mu     sync.Mutex
		pushes []capturedPush
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		pushes = append(pushes, capturedPush{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedPush {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedPush(nil), pushes...)
	}
}

func pushConfig(url string) config.Config {
	return config.Config{
		Environment: "test",
		JobPush:     config.JobPushConfig{PushgatewayURL: url, Job: "kfdb_jobs"},
	}
}

func TestNewPusherDisabledWithoutURL(t *testing.T) {
	assert.Nil(t, NewPusher(pushConfig(""), NewRecorder(), zap.NewNop()))
	assert.Nil(t, NewPusher(pushConfig("not a url"), NewRecorder(), zap.NewNop()))

	var p *Pusher
	assert.NoError(t, p.Push(context.Background(), time.Now(), nil))
}

func TestPushSuccessIncludesLastSuccess(t *testing.T) {
	srv, pushes := newGateway(t)
	recorder := NewRecorder()
	recorder.ObserveRun("expire_api_keys", 7, 250*time.Millisecond, nil)

	p := NewPusher(pushConfig(srv.URL), recorder, zap.NewNop())
	require.NotNil(t, p)

	finished := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	require.NoError(t, p.Push(context.Background(), finished, nil))

	got := pushes()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPost, got[0].method)
	assert.Equal(t, "/metrics/job/kfdb_jobs/environment/test", got[0].path)
	assert.Contains(t, string(got[0].body), "kfdb_jobs_task_rows_processed")
	assert.Contains(t, string(got[0].body), "kfdb_jobs_last_success_timestamp_seconds")
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(recorder.lastSuccess))
}

func TestPushFailureKeepsPreviousLastSuccess(t *testing.T) {
	srv, pushes := newGateway(t)
	recorder := NewRecorder()
	recorder.ObserveRun("purge_expired_oauth_tokens", 0, time.Second, errors.New("db down"))

	p := NewPusher(pushConfig(srv.URL), recorder, zap.NewNop())
	require.NotNil(t, p)
	require.NoError(t, p.Push(context.Background(), time.Now(), errors.New("run failed")))

	got := pushes()
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0].body), "kfdb_jobs_task_failed")
	assert.NotContains(t, string(got[0].body), "kfdb_jobs_last_success_timestamp_seconds")
}

func TestObserveRunSetsTaskGauges(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObserveRun("expire_api_keys", 2, 2*time.Second, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.failed.WithLabelValues("expire_api_keys")))

	recorder.ObserveRun("expire_api_keys", 5, time.Second, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(recorder.failed.WithLabelValues("expire_api_keys")))
	assert.Equal(t, 5.0, testutil.ToFloat64(recorder.processed.WithLabelValues("expire_api_keys")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.duration.WithLabelValues("expire_api_keys")))
}
