package actions

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lakeguide/internal/backend"
	"lakeguide/internal/contextstore"
	"lakeguide/internal/types"
)

// resolveSpecies turns a raw mention into a single resolved name.
// Stage one is the local canonical dictionary (exact, then fuzzy); only a
// miss there goes to the backend, which may come back ambiguous. On
// ambiguity the returned responses carry the candidate menu and ok is
// false; the stored context remembers the list for the pick callback.
func (d *Dispatcher) resolveSpecies(ctx context.Context, userID, raw string) (string, []types.StructuredResponse, bool) {
	if canon, ok := d.lex.MatchCanonical(raw); ok {
		return canon, nil, true
	}

	res, err := d.backend.FindSpecies(ctx, raw, d.backend.PageSize(), 0)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return "", []types.StructuredResponse{types.Text(MsgUnknownObject)}, false
		}
		d.logger.Warn("species lookup failed", zap.String("name", raw), zap.Error(err))
		return "", []types.StructuredResponse{types.Text(MsgBackendDown)}, false
	}

	switch res.Status {
	case backend.StatusFound:
		if len(res.Matches) == 0 {
			return "", []types.StructuredResponse{types.Text(MsgUnknownObject)}, false
		}
		return res.Matches[0], nil, true
	case backend.StatusAmbiguous:
		return "", d.disambiguationMenu(ctx, userID, raw, res, 0), false
	default:
		return "", []types.StructuredResponse{types.Text(MsgUnknownObject)}, false
	}
}

// disambiguationMenu stores the candidate page and renders it as a button
// menu. offset is the count of candidates already shown in earlier pages,
// so a later "show more" always advances, never repeats.
func (d *Dispatcher) disambiguationMenu(ctx context.Context, userID, term string, res *backend.FindResult, offset int) []types.StructuredResponse {
	d.store.SaveDisambiguation(ctx, userID, &contextstore.DisambiguationContext{
		Options:      res.Matches,
		OriginalTerm: term,
		Offset:       offset,
		HasMore:      res.HasMore,
	})

	rows := make([][]types.Button, 0, len(res.Matches)+1)
	for i, name := range res.Matches {
		rows = append(rows, []types.Button{{
			Text:         name,
			CallbackData: types.Callback{Kind: types.CallbackPick, Index: i}.Encode(),
		}})
	}
	if res.HasMore {
		rows = append(rows, []types.Button{{
			Text:         "Show more",
			CallbackData: types.Callback{Kind: types.CallbackMore}.Encode(),
		}})
	}

	return []types.StructuredResponse{types.Clarification(
		fmt.Sprintf("I found several matches for %q. Which one did you mean?", term),
		rows,
	)}
}

// handlePick consumes the stored candidate list and proceeds straight to
// the description of the chosen one. A stale or out-of-range pick answers
// with the expired line; the context is gone either way.
func (d *Dispatcher) handlePick(ctx context.Context, userID string, debug bool, index int) []types.StructuredResponse {
	dc, ok := d.store.Disambiguation(ctx, userID)
	if !ok || index < 0 || index >= len(dc.Options) {
		return []types.StructuredResponse{types.Text(MsgExpired)}
	}
	name := dc.Options[index]
	d.store.ClearDisambiguation(ctx, userID)

	req := &Request{UserID: userID, Query: name, Debug: debug}
	return d.describeResolved(ctx, req, name)
}

// handleMore fetches the next candidate page, replacing the stored context
// with a strictly larger offset.
func (d *Dispatcher) handleMore(ctx context.Context, userID string) []types.StructuredResponse {
	dc, ok := d.store.Disambiguation(ctx, userID)
	if !ok {
		return []types.StructuredResponse{types.Text(MsgExpired)}
	}

	next := dc.Offset + len(dc.Options)
	res, err := d.backend.FindSpecies(ctx, dc.OriginalTerm, d.backend.PageSize(), next)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			d.store.ClearDisambiguation(ctx, userID)
			return []types.StructuredResponse{types.Text(fmt.Sprintf("No more matches for %q.", dc.OriginalTerm))}
		}
		d.logger.Warn("disambiguation page fetch failed",
			zap.String("term", dc.OriginalTerm), zap.Int("offset", next), zap.Error(err))
		return []types.StructuredResponse{types.Text(MsgBackendDown)}
	}
	if len(res.Matches) == 0 {
		d.store.ClearDisambiguation(ctx, userID)
		return []types.StructuredResponse{types.Text(fmt.Sprintf("No more matches for %q.", dc.OriginalTerm))}
	}

	return d.disambiguationMenu(ctx, userID, dc.OriginalTerm, res, next)
}
