package cache

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const defaultClientTTL = 5 * time.Minute

// ClientResolverCache maps public OAuth client ids to database ids for the
// usage tracker.
type ClientResolverCache interface {
	GetClientID(clientID string) (snowflake.ID, bool)
	SetClientID(clientID string, id snowflake.ID)
}

type clientResolverCache struct {
	clients Cache[string, snowflake.ID]
	ttl     time.Duration
}

func NewClientResolverCache() ClientResolverCache {
	return &clientResolverCache{
		clients: NewTTLCache[string, snowflake.ID](),
		ttl:     defaultClientTTL,
	}
}

func (c *clientResolverCache) GetClientID(clientID string) (snowflake.ID, bool) {
	return c.clients.Get(strings.TrimSpace(clientID))
}

func (c *clientResolverCache) SetClientID(clientID string, id snowflake.ID) {
	if id == 0 {
		return
	}
	c.clients.Set(strings.TrimSpace(clientID), id, c.ttl)
}
