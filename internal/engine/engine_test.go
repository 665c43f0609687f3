package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeguide/internal/actions"
	"lakeguide/internal/analyzer"
	"lakeguide/internal/backend"
	"lakeguide/internal/contextstore"
	"lakeguide/internal/dialogue"
	"lakeguide/internal/lexicon"
	"lakeguide/internal/llm"
	"lakeguide/internal/types"
)

// scriptedLLM replays one canned completion per call.
type scriptedLLM struct {
	responses []string
	calls     int
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

func (s *scriptedLLM) CompleteWithSystem(context.Context, string, string) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

type testHarness struct {
	engine *Engine
	store  *contextstore.Client
	llm    *scriptedLLM
}

func newHarness(t *testing.T, llmResponses []string, handler http.HandlerFunc, qa *llm.QAClient) *testHarness {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	memory := contextstore.NewMemoryStore()
	t.Cleanup(func() { memory.Close() })
	store := contextstore.NewClient(memory, contextstore.DefaultTTLs(), nil)

	lex, err := lexicon.Open("", 0)
	require.NoError(t, err)
	t.Cleanup(func() { lex.Close() })

	client := &scriptedLLM{responses: llmResponses}
	an := analyzer.New(client, lex, nil)
	dialog := dialogue.NewManager(store, nil)
	kb := backend.NewClient(backend.Config{BaseURL: srv.URL, PageSize: 4})
	dispatcher := actions.NewDispatcher(kb, store, lex, an, qa, nil, nil)
	eng := New(an, dialog, dispatcher, store, nil, qa != nil, nil)

	return &testHarness{engine: eng, store: store, llm: client}
}

func jsonBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
	return m
}

func reply(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestHandleMessageDescribe(t *testing.T) {
	h := newHarness(t, []string{`{
		"action": "describe",
		"primary_entity": {"name": "Baikal seal", "type": "biological", "category": "Fauna"}
	}`}, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/species/description", r.URL.Path)
		reply(t, w, map[string]any{"descriptions": []string{"The only freshwater seal."}})
	}, nil)
	ctx := context.Background()

	responses := h.engine.HandleMessage(ctx, "u1", "Tell me about the Baikal seal")
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Content, "freshwater seal")

	// The resolved turn is stored for the next utterance.
	turn, ok := h.store.LastTurn(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, types.ActionDescribe, turn.Action)
	assert.Equal(t, "Baikal seal", turn.Entity.Name)
	assert.Contains(t, turn.Response, "freshwater seal")
}

func TestHandleMessageEllipticalFollowUp(t *testing.T) {
	var imageFeatures map[string]any
	h := newHarness(t, []string{
		`{
			"action": "show_image",
			"primary_entity": {"name": "Siberian larch", "type": "biological", "category": "Flora"},
			"qualifiers": ["in autumn"]
		}`,
		`{
			"action": "show_image",
			"qualifiers": ["in winter"]
		}`,
	}, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/search", r.URL.Path)
		body := jsonBody(t, r)
		imageFeatures, _ = body["features"].(map[string]any)
		reply(t, w, map[string]any{"images": []map[string]string{{"image_path": "larch.jpg"}}})
	}, nil)
	ctx := context.Background()

	first := h.engine.HandleMessage(ctx, "u1", "show me the Siberian larch in autumn")
	require.Equal(t, types.ResponseImage, first[0].Type)
	assert.Equal(t, "Autumn", imageFeatures["season"])

	// "and in winter?" names no entity; the prior subject carries forward
	// and the new season overrides the old one.
	second := h.engine.HandleMessage(ctx, "u1", "and in winter?")
	require.Equal(t, types.ResponseImage, second[0].Type)
	assert.Equal(t, "Winter", imageFeatures["season"])

	turn, ok := h.store.LastTurn(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "Siberian larch", turn.Entity.Name)
	assert.Equal(t, "Winter", turn.Attrs[types.AttrSeason])
}

func TestHandleMessageAnalyzerExhausted(t *testing.T) {
	h := newHarness(t, []string{"I really have no idea."}, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("backend must not be called, got %s", r.URL.Path)
	}, nil)
	ctx := context.Background()

	responses := h.engine.HandleMessage(ctx, "u1", "flurble the wozzit")
	require.Len(t, responses, 1)
	assert.Equal(t, actions.MsgCouldNotUnderstand, responses[0].Content)

	// Three corrective attempts; no prior turn, so no context-free pass.
	assert.Equal(t, 3, h.llm.calls)

	// A failed turn leaves no stale context behind.
	_, ok := h.store.LastTurn(ctx, "u1")
	assert.False(t, ok)
}

func TestHandleMessageActionOverride(t *testing.T) {
	// The model invents an action outside the taxonomy. It coerces to
	// unknown, there is no prior turn to fall back on, and the engine
	// overrides to describe exactly once instead of refusing.
	h := newHarness(t, []string{`{
		"action": "tell_me_everything",
		"primary_entity": {"name": "Baikal seal", "type": "biological", "category": "Fauna"}
	}`}, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/species/description", r.URL.Path)
		reply(t, w, map[string]any{"descriptions": []string{"The only freshwater seal."}})
	}, nil)

	responses := h.engine.HandleMessage(context.Background(), "u1", "the seal, everything about it")
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Content, "freshwater seal")
}

func TestHandleMessageQAOffer(t *testing.T) {
	qaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ask", r.URL.Path)
		body := jsonBody(t, r)
		assert.Equal(t, "what is the deepest lake", body["question"])
		reply(t, w, map[string]any{"answer": "Lake Baikal is the deepest lake on Earth."})
	}))
	t.Cleanup(qaSrv.Close)
	qa := llm.NewQAClient(qaSrv.URL, 0)

	h := newHarness(t, []string{"not json at all"}, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("backend must not be called, got %s", r.URL.Path)
	}, qa)
	ctx := context.Background()

	// Without opt-in no offer appears.
	responses := h.engine.HandleMessage(ctx, "u1", "what is the deepest lake")
	require.Len(t, responses, 1)

	// With opt-in the dead end grows a QA button.
	h.store.SaveSettings(ctx, "u1", contextstore.UserSettings{QAOptIn: true})
	responses = h.engine.HandleMessage(ctx, "u1", "what is the deepest lake")
	require.Len(t, responses, 2)
	require.Equal(t, types.ResponseClarification, responses[1].Type)
	assert.Equal(t, "qa", responses[1].Buttons[0][0].CallbackData)

	// Pressing the button replays the stored question.
	answer := h.engine.HandleCallback(ctx, "u1", "qa")
	require.Len(t, answer, 1)
	assert.Contains(t, answer[0].Content, "deepest lake on Earth")
}

func TestHandleCallbackDelegates(t *testing.T) {
	h := newHarness(t, []string{""}, func(w http.ResponseWriter, r *http.Request) {}, nil)

	responses := h.engine.HandleCallback(context.Background(), "u1", "pick:0")
	require.Len(t, responses, 1)
	assert.Equal(t, actions.MsgExpired, responses[0].Content)
}
