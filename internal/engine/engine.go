// Package engine runs the per-message pipeline: analyze the utterance,
// enrich it against the stored prior turn, dispatch to a handler, and
// persist the resolved turn. One inbound message maps to exactly one
// pipeline pass; button presses bypass analysis and go straight to the
// dispatcher's callback path.
package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lakeguide/internal/actions"
	"lakeguide/internal/analyzer"
	"lakeguide/internal/contextstore"
	"lakeguide/internal/dialogue"
	"lakeguide/internal/logging"
	"lakeguide/internal/types"
)

// Engine coordinates one user turn end to end.
type Engine struct {
	analyzer   *analyzer.Analyzer
	dialog     *dialogue.Manager
	dispatcher *actions.Dispatcher
	store      *contextstore.Client
	audit      *logging.AuditLog
	logger     *zap.Logger
	qaEnabled  bool
}

// New assembles the pipeline. qaEnabled gates the Q&A fallback offer for
// users who opted in.
func New(an *analyzer.Analyzer, dialog *dialogue.Manager, dispatcher *actions.Dispatcher, store *contextstore.Client, audit *logging.AuditLog, qaEnabled bool, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		analyzer:   an,
		dialog:     dialog,
		dispatcher: dispatcher,
		store:      store,
		audit:      audit,
		logger:     logger.Named("engine"),
		qaEnabled:  qaEnabled,
	}
}

// HandleMessage processes one free-text message and returns the responses
// to render. It never returns an error; every failure mode maps to a
// user-facing reply. The turn is persisted before returning so the next
// message from the same user always sees this turn's context.
func (e *Engine) HandleMessage(ctx context.Context, userID, text string) []types.StructuredResponse {
	turnID := uuid.NewString()
	logger := e.logger.With(zap.String("turn_id", turnID), zap.String("user_id", userID))

	settings := e.store.Settings(ctx, userID)
	prior, _ := e.store.LastTurn(ctx, userID)

	analysis, err := e.analyzer.Analyze(ctx, text, prior)
	if err != nil || analysis == nil {
		logger.Warn("analysis exhausted", zap.Error(err))
		e.audit.Record(logging.AuditEvent{
			Type:   logging.AuditAnalyzerExhausted,
			UserID: userID,
			Query:  text,
		})
		e.store.ClearTurn(ctx, userID)
		return e.withQAOffer(ctx, userID, text, settings,
			[]types.StructuredResponse{types.Text(actions.MsgCouldNotUnderstand)})
	}

	result := e.dialog.Enrich(analysis, prior, text)
	a := result.Analysis

	// Bounded override: an action nothing can handle falls back to describe
	// exactly once, provided there is a typed subject to describe.
	if a.Entity != nil && a.Entity.Type != types.EntityUnknown &&
		!e.dispatcher.Handles(a.Action, a.Entity.Type) {
		logger.Info("overriding unhandled action",
			zap.String("from", string(a.Action)), zap.String("to", string(types.ActionDescribe)))
		a.Action = types.ActionDescribe
	}

	logger.Info("dispatching",
		zap.String("action", string(a.Action)),
		zap.String("entity", entityName(a.Entity)))

	req := &actions.Request{
		UserID:      userID,
		Query:       text,
		Analysis:    a,
		CompareWith: result.CompareWith,
		Debug:       settings.Debug,
	}
	responses := e.dispatcher.Route(ctx, req)

	e.dialog.Persist(ctx, userID, text, a, responses)
	return e.withQAOffer(ctx, userID, text, settings, responses)
}

// HandleCallback processes one button press.
func (e *Engine) HandleCallback(ctx context.Context, userID, token string) []types.StructuredResponse {
	return e.dispatcher.HandleCallback(ctx, userID, token)
}

// withQAOffer appends the "ask the general knowledge base" button when the
// pipeline came up empty-handed and the user opted in. The original query
// is persisted so the QA callback can replay it even though the failed turn
// itself stored no subject.
func (e *Engine) withQAOffer(ctx context.Context, userID, text string, settings contextstore.UserSettings, responses []types.StructuredResponse) []types.StructuredResponse {
	if !e.qaEnabled || !settings.QAOptIn || !cameUpEmpty(responses) {
		return responses
	}
	e.store.SaveTurn(ctx, &types.Turn{UserID: userID, Query: text})
	offer := types.Clarification(
		"I can also ask the general knowledge base about this.",
		[][]types.Button{{{
			Text:         "Ask anyway",
			CallbackData: types.Callback{Kind: types.CallbackQA}.Encode(),
		}}},
	)
	return append(responses, offer)
}

// cameUpEmpty reports whether the turn produced only a dead-end canned
// reply worth escalating to the Q&A fallback.
func cameUpEmpty(responses []types.StructuredResponse) bool {
	if len(responses) != 1 || responses[0].Type != types.ResponseText {
		return false
	}
	switch responses[0].Content {
	case actions.MsgNothingFound, actions.MsgCouldNotUnderstand, actions.MsgUnknownObject:
		return true
	}
	return false
}

func entityName(e *types.Entity) string {
	if e == nil {
		return ""
	}
	return e.Name
}
