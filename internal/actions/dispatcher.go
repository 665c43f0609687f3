// Package actions maps analyzed intents to handlers and renders structured
// responses. The dispatcher owns the (action, entity type) routing table,
// the disambiguation menus, and the attribute-relaxation fallback; every
// user-visible sentence the pipeline can produce on its own lives here.
package actions

import (
	"context"

	"go.uber.org/zap"

	"lakeguide/internal/analyzer"
	"lakeguide/internal/backend"
	"lakeguide/internal/contextstore"
	"lakeguide/internal/lexicon"
	"lakeguide/internal/llm"
	"lakeguide/internal/logging"
	"lakeguide/internal/types"
)

// Canned replies. The analyzer's history denylist keys on these phrases, so
// reword with care.
const (
	MsgCouldNotUnderstand = "Sorry, I couldn't understand the question. Try rephrasing it."
	MsgCantDo             = "I can't do that yet."
	MsgUnknownObject      = "I don't know this object. Try asking about a Baikal species or place."
	MsgExpired            = "This selection has expired. Please ask again."
	MsgNothingFound       = "Nothing found for that request, sorry."
	MsgBackendDown        = "The knowledge service is not answering right now. Please try again in a minute."
	msgWhichObject        = "Which object do you mean? Name a species or place."
	msgWhichPlace         = "Near where? Name a place and I'll look around it."
)

// entityAny is the routing wildcard: the handler accepts the action for
// every entity type without a more specific route.
const entityAny types.EntityType = "*"

type routeKey struct {
	action types.Action
	entity types.EntityType
}

type handlerFunc func(ctx context.Context, req *Request) []types.StructuredResponse

// Request is one routed unit of work: the enriched analysis plus the
// per-turn flags the handlers need.
type Request struct {
	UserID   string
	Query    string
	Analysis *types.Analysis
	// CompareWith, when set, lets the describe handler offer a follow-up
	// comparison against the previous subject.
	CompareWith *types.Entity
	Debug       bool
}

// Dispatcher routes enriched analyses to action handlers.
type Dispatcher struct {
	backend  *backend.Client
	store    *contextstore.Client
	lex      *lexicon.Lexicon
	analyzer *analyzer.Analyzer
	qa       *llm.QAClient
	audit    *logging.AuditLog
	logger   *zap.Logger
	routes   map[routeKey]handlerFunc
}

// NewDispatcher wires the routing table. qa and audit may be nil.
func NewDispatcher(b *backend.Client, store *contextstore.Client, lex *lexicon.Lexicon, an *analyzer.Analyzer, qa *llm.QAClient, audit *logging.AuditLog, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		backend:  b,
		store:    store,
		lex:      lex,
		analyzer: an,
		qa:       qa,
		audit:    audit,
		logger:   logger.Named("actions"),
	}
	d.routes = map[routeKey]handlerFunc{
		{types.ActionDescribe, entityAny}:     d.handleDescribe,
		{types.ActionShowImage, entityAny}:    d.handleShowImage,
		{types.ActionShowMap, entityAny}:      d.handleShowMap,
		{types.ActionFindNearby, entityAny}:   d.handleFindNearby,
		{types.ActionListObjects, entityAny}:  d.handleListObjects,
		{types.ActionCountObjects, entityAny}: d.handleCountObjects,
		{types.ActionCompare, entityAny}:      d.handleCompare,
		{types.ActionSmalltalk, entityAny}:    d.handleSmalltalk,
		{types.ActionHelp, entityAny}:         d.handleHelp,
	}
	return d
}

// Handles reports whether a handler exists for the pair, counting the
// wildcard route. The caller uses this to decide on an action override
// before committing to Route.
func (d *Dispatcher) Handles(action types.Action, entity types.EntityType) bool {
	if _, ok := d.routes[routeKey{action, entity}]; ok {
		return true
	}
	_, ok := d.routes[routeKey{action, entityAny}]
	return ok
}

// Route dispatches one enriched analysis. An untyped subject short-circuits
// to the unknown-object reply before any handler runs; a pair with no
// handler is audited and answered with a canned line, never an error.
func (d *Dispatcher) Route(ctx context.Context, req *Request) []types.StructuredResponse {
	a := req.Analysis
	if a == nil {
		return []types.StructuredResponse{types.Text(MsgCouldNotUnderstand)}
	}

	if a.Entity != nil && a.Entity.Type == types.EntityUnknown {
		d.audit.Record(logging.AuditEvent{
			Type:   logging.AuditUnknownEntity,
			UserID: req.UserID,
			Query:  req.Query,
			Action: string(a.Action),
			Entity: a.Entity.Name,
		})
		return []types.StructuredResponse{types.Text(MsgUnknownObject)}
	}

	entity := entityAny
	if a.Entity != nil {
		entity = a.Entity.Type
	}
	handler, ok := d.routes[routeKey{a.Action, entity}]
	if !ok {
		handler, ok = d.routes[routeKey{a.Action, entityAny}]
	}
	if !ok {
		d.logger.Info("no handler for action",
			zap.String("action", string(a.Action)),
			zap.String("entity_type", string(entity)))
		d.audit.Record(logging.AuditEvent{
			Type:   logging.AuditUnhandledAction,
			UserID: req.UserID,
			Query:  req.Query,
			Action: string(a.Action),
			Entity: string(entity),
		})
		return []types.StructuredResponse{types.Text(MsgCantDo)}
	}
	return handler(ctx, req)
}

// handleSmalltalk answers social pleasantries through the persona call.
func (d *Dispatcher) handleSmalltalk(ctx context.Context, req *Request) []types.StructuredResponse {
	return []types.StructuredResponse{types.Text(d.analyzer.Smalltalk(ctx, req.Query))}
}

// handleHelp answers capability questions.
func (d *Dispatcher) handleHelp(ctx context.Context, req *Request) []types.StructuredResponse {
	return []types.StructuredResponse{types.Text(d.analyzer.Capabilities(ctx, req.Query))}
}
