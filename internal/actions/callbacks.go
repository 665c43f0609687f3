package actions

import (
	"context"

	"go.uber.org/zap"

	"lakeguide/internal/types"
)

// HandleCallback resolves one button press. Tokens are validated in a
// single place; anything malformed or stale gets the expired line, the
// same answer the user sees for a context that timed out.
func (d *Dispatcher) HandleCallback(ctx context.Context, userID, token string) []types.StructuredResponse {
	cb, err := types.DecodeCallback(token)
	if err != nil {
		d.logger.Debug("rejected callback token", zap.String("token", token), zap.Error(err))
		return []types.StructuredResponse{types.Text(MsgExpired)}
	}

	settings := d.store.Settings(ctx, userID)
	switch cb.Kind {
	case types.CallbackPick:
		return d.handlePick(ctx, userID, settings.Debug, cb.Index)
	case types.CallbackMore:
		return d.handleMore(ctx, userID)
	case types.CallbackDrop:
		return d.handleDrop(ctx, userID, settings.Debug, cb.Attribute)
	case types.CallbackDropAll:
		return d.handleDrop(ctx, userID, settings.Debug, "")
	case types.CallbackCompare:
		return d.handleCompareCallback(ctx, userID, settings.Debug)
	case types.CallbackQA:
		return d.handleQACallback(ctx, userID)
	default:
		return []types.StructuredResponse{types.Text(MsgExpired)}
	}
}

// handleCompareCallback consumes the stored comparison pair.
func (d *Dispatcher) handleCompareCallback(ctx context.Context, userID string, debug bool) []types.StructuredResponse {
	cc, ok := d.store.Compare(ctx, userID)
	if !ok {
		return []types.StructuredResponse{types.Text(MsgExpired)}
	}
	d.store.ClearCompare(ctx, userID)
	req := &Request{UserID: userID, Debug: debug}
	return d.compareByNames(ctx, req, cc.First, cc.Second)
}

// handleQACallback forwards the last stored query to the plain Q&A service.
// Only reachable when the engine offered the button, so a nil client or a
// missing turn means the offer has simply aged out.
func (d *Dispatcher) handleQACallback(ctx context.Context, userID string) []types.StructuredResponse {
	if d.qa == nil {
		return []types.StructuredResponse{types.Text(MsgExpired)}
	}
	turn, ok := d.store.LastTurn(ctx, userID)
	if !ok || turn.Query == "" {
		return []types.StructuredResponse{types.Text(MsgExpired)}
	}
	answer, err := d.qa.Ask(ctx, turn.Query)
	if err != nil || answer == "" {
		d.logger.Warn("qa fallback failed", zap.Error(err))
		return []types.StructuredResponse{types.Text(MsgBackendDown)}
	}
	return []types.StructuredResponse{types.Text(answer)}
}
