// Package dialogue resolves elliptical follow-ups by merging the current
// turn's (possibly partial) analysis with the stored prior turn, and
// persists the resolved turn as the new conversational context.
package dialogue

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"lakeguide/internal/contextstore"
	"lakeguide/internal/types"
)

// shortUtteranceTokens is the cutoff under which a bare new subject is
// treated as "same question, new object".
const shortUtteranceTokens = 3

// Result is the enriched analysis plus the optional comparison signal.
type Result struct {
	Analysis *types.Analysis
	// CompareWith is set when the current and prior entities are different
	// members of the same broad category, so the caller may offer a
	// comparison follow-up. Purely additive; absence is not an error.
	CompareWith *types.Entity
}

// Manager applies the enrichment rules and owns turn persistence.
type Manager struct {
	store  *contextstore.Client
	logger *zap.Logger
}

// NewManager creates a dialogue manager.
func NewManager(store *contextstore.Client, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger.Named("dialogue")}
}

// Enrich merges the current analysis with the prior turn. The rules run in
// a fixed order; each consumes the output of the previous one. Enrich never
// fails: with no usable prior context the current analysis passes through
// unchanged.
func (m *Manager) Enrich(current *types.Analysis, prior *types.Turn, query string) Result {
	if current == nil {
		return Result{}
	}
	out := current.Clone()
	if prior == nil {
		return Result{Analysis: out}
	}

	carriedForward := false

	// 1. Entity carry-forward: an elliptical turn inherits the prior subject.
	if out.Entity == nil && prior.Entity != nil {
		e := *prior.Entity
		out.Entity = &e
		carriedForward = true
	}

	// 2. Short-new-object: a terse utterance naming only a new subject keeps
	// the prior question.
	if !carriedForward &&
		len(strings.Fields(query)) <= shortUtteranceTokens &&
		out.Entity != nil && prior.Entity != nil &&
		!out.Entity.SameSubject(prior.Entity) &&
		len(out.Attributes) == 0 && out.Secondary == nil &&
		!prior.Action.IsZero() {
		out.Action = prior.Action
	}

	// 3. Unknown-action fallback.
	if out.Action.IsZero() && !prior.Action.IsZero() {
		out.Action = prior.Action
	}

	// 4. Attribute merge, current turn winning on collision. Only for the
	// same (possibly carried-forward) subject; a new subject starts clean.
	if out.Entity.SameSubject(prior.Entity) {
		out.Attributes = out.Attributes.MergeOver(prior.Attrs)
	}

	result := Result{Analysis: out}

	// 5. Comparison opportunity: describing a different member of the same
	// broad category as last time.
	if out.Action == types.ActionDescribe &&
		out.Entity != nil && prior.Entity != nil &&
		!out.Entity.SameSubject(prior.Entity) &&
		out.Entity.Type == types.EntityBiological &&
		prior.Entity.Type == types.EntityBiological &&
		out.Entity.Category != "" &&
		out.Entity.Category == prior.Entity.Category {
		e := *prior.Entity
		result.CompareWith = &e
	}

	return result
}

// Persist stores the resolved turn as the single most-recent history entry.
// A turn that resolved neither an object nor a geo place clears stored
// context entirely instead of persisting a junk turn.
func (m *Manager) Persist(ctx context.Context, userID, query string, analysis *types.Analysis, responses []types.StructuredResponse) {
	if analysis == nil || !hasSubject(analysis) {
		m.store.ClearTurn(ctx, userID)
		return
	}

	turn := &types.Turn{
		UserID: userID,
		Query:  query,
		Action: analysis.Action,
		Entity: analysis.Entity,
		Attrs:  analysis.Attributes,
	}
	turn.Response, turn.Caption = pickResponseText(responses)
	m.store.SaveTurn(ctx, turn)
}

// hasSubject reports whether the analysis resolved a usable subject: a
// typed primary entity, or a geo place in either position.
func hasSubject(a *types.Analysis) bool {
	if a.Entity != nil && a.Entity.Type != types.EntityUnknown {
		return true
	}
	return a.Secondary != nil && a.Secondary.Type == types.EntityGeoPlace
}

// pickResponseText selects the history text: the first plain text response,
// with the first non-text content as caption fallback.
func pickResponseText(responses []types.StructuredResponse) (text, caption string) {
	for _, r := range responses {
		switch r.Type {
		case types.ResponseText:
			if text == "" {
				text = r.Content
			}
		case types.ResponseClarification, types.ResponseClarificationMap, types.ResponseMap:
			if caption == "" {
				caption = r.Content
			}
		}
	}
	return text, caption
}
