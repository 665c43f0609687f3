// Package analyzer turns a raw utterance (plus the prior turn) into a
// validated structured Analysis by prompting the LLM, extracting the JSON
// object from its answer, and retrying with a corrective note on
// validation failure.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"lakeguide/internal/lexicon"
	"lakeguide/internal/llm"
	"lakeguide/internal/types"
)

// maxCorrectiveRetries bounds re-prompts after a validation failure.
// The first attempt plus two corrections; after that the analyzer gives up.
const maxCorrectiveRetries = 2

// Analyzer classifies utterances via the LLM and the lexicon.
type Analyzer struct {
	client llm.Client
	lex    *lexicon.Lexicon
	logger *zap.Logger
}

// New creates an analyzer.
func New(client llm.Client, lex *lexicon.Lexicon, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{client: client, lex: lex, logger: logger.Named("analyzer")}
}

// rawAnalysis is the wire shape the model must produce. Field type
// mismatches surface as unmarshal errors and feed the corrective retry.
type rawAnalysis struct {
	Action          string     `json:"action"`
	PrimaryEntity   *rawEntity `json:"primary_entity"`
	SecondaryEntity *rawEntity `json:"secondary_entity"`
	Qualifiers      []string   `json:"qualifiers"`
	SearchQuery     string     `json:"search_query"`
}

type rawEntity struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Category    string   `json:"category"`
	Subcategory []string `json:"subcategory"`
}

// Analyze classifies query into an Analysis. The prior turn, when present,
// is offered as context; if every context-augmented attempt fails, exactly
// one context-free pass runs before giving up. A nil result with an error
// means "could not understand"; callers respond accordingly, never crash.
func (a *Analyzer) Analyze(ctx context.Context, query string, prior *types.Turn) (*types.Analysis, error) {
	analysis, err := a.analyzeOnce(ctx, query, prior)
	if err != nil && prior != nil {
		a.logger.Debug("context-augmented analysis failed, retrying context-free",
			zap.String("query", query), zap.Error(err))
		analysis, err = a.analyzeOnce(ctx, query, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("analyze %q: %w", query, err)
	}
	return analysis, nil
}

// analyzeOnce runs the bounded corrective-retry loop for one history mode.
// Transport failures abort immediately (the caller decides whether a
// context-free pass is still worth trying); validation failures re-prompt
// with the error appended.
func (a *Analyzer) analyzeOnce(ctx context.Context, query string, prior *types.Turn) (*types.Analysis, error) {
	basePrompt := buildUserPrompt(query, prior)

	var lastErr error
	for attempt := 0; attempt <= maxCorrectiveRetries; attempt++ {
		userPrompt := basePrompt
		if attempt > 0 {
			userPrompt = fmt.Sprintf("%s\n\nPREVIOUS ATTEMPT WAS INVALID:\n%v\n\nReturn a corrected JSON object.", basePrompt, lastErr)
		}

		resp, err := a.client.CompleteWithSystem(ctx, analyzerSystemPrompt, userPrompt)
		if err != nil {
			return nil, fmt.Errorf("llm request: %w", err)
		}

		analysis, err := a.validate(resp)
		if err != nil {
			lastErr = err
			a.logger.Debug("analysis validation failed",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return analysis, nil
	}
	return nil, fmt.Errorf("validation failed after %d attempts: %w", maxCorrectiveRetries+1, lastErr)
}

// validate extracts, parses and coerces the model output. Unknown action
// strings coerce to unknown; entity shape rules are repaired by the types
// constructors; only structural problems (no JSON, wrong field types) are
// errors.
func (a *Analyzer) validate(resp string) (*types.Analysis, error) {
	payload := extractJSON(resp)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("malformed analysis JSON: %w", err)
	}

	analysis := &types.Analysis{
		Action:      types.ParseAction(raw.Action),
		SearchQuery: raw.SearchQuery,
	}
	if e := convertEntity(raw.PrimaryEntity); e != nil {
		analysis.Entity = e
	}
	if e := convertEntity(raw.SecondaryEntity); e != nil {
		analysis.Secondary = e
	}

	attrs, unmatched := a.lex.Classify(raw.Qualifiers)
	analysis.Attributes = attrs
	analysis.Unmatched = unmatched

	return analysis, nil
}

func convertEntity(raw *rawEntity) *types.Entity {
	if raw == nil || raw.Name == "" {
		return nil
	}
	e := types.NewEntity(raw.Name, types.ParseEntityType(raw.Type), raw.Category, raw.Subcategory)
	return &e
}
