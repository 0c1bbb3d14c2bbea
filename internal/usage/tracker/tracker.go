// Package tracker records usage logs off the request path.
package tracker

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/cache"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/observability/metrics"
	usagedomain "github.com/derrickmugabwa/kenya-food-database-api/internal/usage/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultWriteTimeout = 5 * time.Second

	maxEndpointLen  = 500
	maxMethodLen    = 10
	maxIPLen        = 45
	maxUserAgentLen = 500
)

// ClientResolver maps a public OAuth client id to the client's database id.
type ClientResolver interface {
	ResolveClientID(ctx context.Context, clientID string) (snowflake.ID, error)
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    usagedomain.Repository
	Clients ClientResolver
	Cache   cache.ClientResolverCache
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

// Tracker writes one usage log per event in its own goroutine. Failures are
// logged and counted, never returned.
type Tracker struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         usagedomain.Repository
	clients      ClientResolver
	cache        cache.ClientResolverCache
	clock        clock.Clock
	metrics      *metrics.Metrics
	writeTimeout time.Duration

	wg sync.WaitGroup
}

func New(p Params) *Tracker {
	return &Tracker{
		db:           p.DB,
		log:          p.Log.Named("usage.tracker"),
		genID:        p.GenID,
		repo:         p.Repo,
		clients:      p.Clients,
		cache:        p.Cache,
		clock:        p.Clock,
		metrics:      p.Metrics,
		writeTimeout: defaultWriteTimeout,
	}
}

// Track schedules the write and returns immediately. The write is detached
// from ctx cancellation but keeps its values for log correlation.
func (t *Tracker) Track(ctx context.Context, evt usagedomain.Event) {
	if evt.Principal == nil {
		return
	}
	createdAt := t.clock.Now()
	detached, _ := correlation.EnsureCorrelationID(context.WithoutCancel(ctx))

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		writeCtx, cancel := context.WithTimeout(detached, t.writeTimeout)
		defer cancel()
		t.record(writeCtx, evt, createdAt)
	}()
}

// Wait blocks until in-flight writes finish or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) record(ctx context.Context, evt usagedomain.Event, createdAt time.Time) {
	kind := evt.Principal.Type()
	log := t.log.With(correlation.Fields(ctx)...).With(
		zap.String("principal_type", string(kind)),
		zap.String("principal", evt.Principal.Subject()),
	)

	principalID, userAgent, ok := t.resolve(ctx, log, evt)
	if !ok {
		t.metrics.RecordUsageWrite(ctx, string(kind), "resolve_failed")
		return
	}

	entry := &usagedomain.UsageLog{
		ID:            t.genID.Generate(),
		PrincipalType: string(kind),
		PrincipalID:   &principalID,
		Endpoint:      truncate(evt.Endpoint, maxEndpointLen),
		Method:        truncate(evt.Method, maxMethodLen),
		IPAddress:     optional(truncate(evt.IPAddress, maxIPLen)),
		UserAgent:     optional(truncate(userAgent, maxUserAgentLen)),
		StatusCode:    evt.StatusCode,
		CreatedAt:     createdAt,
	}
	if evt.ResponseTime > 0 {
		ms := int(evt.ResponseTime / time.Millisecond)
		entry.ResponseTimeMs = &ms
	}

	if err := t.repo.Insert(ctx, t.db, entry); err != nil {
		log.Warn("failed to record usage", zap.Error(err))
		t.metrics.RecordUsageWrite(ctx, string(kind), "error")
		return
	}
	t.metrics.RecordUsageWrite(ctx, string(kind), "ok")
}

func (t *Tracker) resolve(ctx context.Context, log *zap.Logger, evt usagedomain.Event) (snowflake.ID, string, bool) {
	switch p := evt.Principal.(type) {
	case principal.APIKey:
		return p.KeyID, evt.UserAgent, true
	case principal.Session:
		return p.UserID, evt.UserAgent, true
	case principal.OAuthClient:
		userAgent := evt.UserAgent
		if userAgent == "" {
			userAgent = "OAuth:" + p.ClientID
		}
		if id, ok := t.cache.GetClientID(p.ClientID); ok {
			return id, userAgent, true
		}
		id, err := t.clients.ResolveClientID(ctx, p.ClientID)
		if err != nil {
			log.Warn("failed to resolve oauth client for usage log", zap.Error(err))
			return 0, "", false
		}
		t.cache.SetClientID(p.ClientID, id)
		return id, userAgent, true
	default:
		return 0, "", false
	}
}

// truncate cuts value to at most max bytes without splitting a UTF-8
// sequence.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
