package contextstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"lakeguide/internal/types"
)

// DisambiguationContext is the pending candidate list from an ambiguous
// lookup, plus the pagination offset already consumed upstream.
type DisambiguationContext struct {
	Options      []string `json:"options"`
	OriginalTerm string   `json:"original_term"`
	Offset       int      `json:"offset"`
	HasMore      bool     `json:"has_more"`
}

// FallbackAttributeContext is the full attribute set of a failed precise
// search, kept so a relaxation button can rebuild the query without
// re-parsing the utterance.
type FallbackAttributeContext struct {
	Object     string           `json:"object"`
	Action     types.Action     `json:"action"`
	Attributes types.Attributes `json:"attributes"`
}

// CompareContext is a pending comparison offer: the two entity names to
// describe side by side if the user accepts.
type CompareContext struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// UserSettings carries per-user toggles persisted alongside the dialogue
// context.
type UserSettings struct {
	Debug   bool `json:"debug,omitempty"`
	QAOptIn bool `json:"qa_opt_in,omitempty"`
}

// TTLs configures the lifetime of each record kind.
type TTLs struct {
	History        time.Duration
	Disambiguation time.Duration
	Fallback       time.Duration
}

// DefaultTTLs returns the standard lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		History:        10 * time.Minute,
		Disambiguation: 5 * time.Minute,
		Fallback:       10 * time.Minute,
	}
}

// Client wraps a Store with typed per-user records. Every read swallows
// store errors into "no context" (logged), so an outage degrades the
// dialogue to stateless mode instead of failing turns.
type Client struct {
	store  Store
	ttls   TTLs
	logger *zap.Logger
}

// NewClient builds a typed client over store.
func NewClient(store Store, ttls TTLs, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{store: store, ttls: ttls, logger: logger.Named("contextstore")}
}

func (c *Client) get(ctx context.Context, key string, out any) bool {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("context read failed, treating as empty", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("context entry corrupt, treating as empty", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Client) set(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("context encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("context write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Client) delete(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("context delete failed", zap.String("key", key), zap.Error(err))
	}
}

// LastTurn returns the most recent stored turn for the user, if any.
func (c *Client) LastTurn(ctx context.Context, userID string) (*types.Turn, bool) {
	var turn types.Turn
	if !c.get(ctx, "history:"+userID, &turn) {
		return nil, false
	}
	return &turn, true
}

// SaveTurn persists the turn as the single most-recent history entry.
func (c *Client) SaveTurn(ctx context.Context, turn *types.Turn) {
	c.set(ctx, "history:"+turn.UserID, turn, c.ttls.History)
}

// ClearTurn removes stored history for the user.
func (c *Client) ClearTurn(ctx context.Context, userID string) {
	c.delete(ctx, "history:"+userID)
}

// Disambiguation returns the pending candidate list for the user.
func (c *Client) Disambiguation(ctx context.Context, userID string) (*DisambiguationContext, bool) {
	var d DisambiguationContext
	if !c.get(ctx, "disambig:"+userID, &d) {
		return nil, false
	}
	return &d, true
}

// SaveDisambiguation stores (replacing) the pending candidate list.
func (c *Client) SaveDisambiguation(ctx context.Context, userID string, d *DisambiguationContext) {
	c.set(ctx, "disambig:"+userID, d, c.ttls.Disambiguation)
}

// ClearDisambiguation consumes the pending candidate list.
func (c *Client) ClearDisambiguation(ctx context.Context, userID string) {
	c.delete(ctx, "disambig:"+userID)
}

// FallbackAttrs returns the stored attribute set from the last failed
// precise search.
func (c *Client) FallbackAttrs(ctx context.Context, userID string) (*FallbackAttributeContext, bool) {
	var f FallbackAttributeContext
	if !c.get(ctx, "fallback:"+userID, &f) {
		return nil, false
	}
	return &f, true
}

// SaveFallbackAttrs stores the attribute set of a failed search.
func (c *Client) SaveFallbackAttrs(ctx context.Context, userID string, f *FallbackAttributeContext) {
	c.set(ctx, "fallback:"+userID, f, c.ttls.Fallback)
}

// ClearFallbackAttrs consumes the stored attribute set. Relaxation clicks
// are single-use; a second click must see expired context.
func (c *Client) ClearFallbackAttrs(ctx context.Context, userID string) {
	c.delete(ctx, "fallback:"+userID)
}

// Compare returns the pending comparison offer for the user.
func (c *Client) Compare(ctx context.Context, userID string) (*CompareContext, bool) {
	var cc CompareContext
	if !c.get(ctx, "compare:"+userID, &cc) {
		return nil, false
	}
	return &cc, true
}

// SaveCompare stores (replacing) the pending comparison offer.
func (c *Client) SaveCompare(ctx context.Context, userID string, cc *CompareContext) {
	c.set(ctx, "compare:"+userID, cc, c.ttls.Disambiguation)
}

// ClearCompare consumes the pending comparison offer.
func (c *Client) ClearCompare(ctx context.Context, userID string) {
	c.delete(ctx, "compare:"+userID)
}

// Settings returns the user's persisted toggles (zero value when absent).
func (c *Client) Settings(ctx context.Context, userID string) UserSettings {
	var s UserSettings
	c.get(ctx, "settings:"+userID, &s)
	return s
}

// SaveSettings persists the user's toggles. Settings ride on the history
// TTL: an idle user reverts to defaults.
func (c *Client) SaveSettings(ctx context.Context, userID string, s UserSettings) {
	c.set(ctx, "settings:"+userID, s, c.ttls.History)
}
