package jobmetrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const defaultPushTimeout = 5 * time.Second

// Pusher sends the metrics of a one-shot maintenance run to a Prometheus
// Pushgateway. A nil Pusher is valid and pushes nothing.
type Pusher struct {
	endpoint   string
	job        string
	grouping   map[string]string
	recorder   *Recorder
	httpClient *http.Client
}

// NewPusher builds a pusher from config. Bad settings are logged and disable
// pushing; they never fail the run.
func NewPusher(cfg config.Config, recorder *Recorder, logger *zap.Logger) *Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := strings.TrimSpace(cfg.JobPush.PushgatewayURL)
	if endpoint == "" {
		return nil
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		logger.Warn("job metrics push disabled", zap.Error(fmt.Errorf("invalid PUSHGATEWAY_URL: %w", err)))
		return nil
	}
	job := strings.TrimSpace(cfg.JobPush.Job)
	if job == "" {
		logger.Warn("job metrics push disabled", zap.Error(errors.New("PUSHGATEWAY_JOB is required")))
		return nil
	}
	return &Pusher{
		endpoint: endpoint,
		job:      job,
		grouping: map[string]string{
			"environment": strings.TrimSpace(cfg.Environment),
		},
		recorder:   recorder,
		httpClient: &http.Client{Timeout: defaultPushTimeout},
	}
}

// Push adds the run's task metrics to the job's group. The last-success
// timestamp only travels with a successful run so a failure keeps the
// previous value on the gateway.
func (p *Pusher) Push(ctx context.Context, finishedAt time.Time, runErr error) error {
	if p == nil || p.recorder == nil {
		return nil
	}

	pusher := push.New(p.endpoint, p.job).
		Gatherer(p.recorder.Registry()).
		Client(p.httpClient)
	if runErr == nil {
		p.recorder.lastSuccess.Set(float64(finishedAt.Unix()))
		pusher = pusher.Collector(p.recorder.lastSuccess)
	}
	for key, value := range p.grouping {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return pusher.AddContext(ctx)
}
