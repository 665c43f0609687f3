package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeguide/internal/analyzer"
	"lakeguide/internal/backend"
	"lakeguide/internal/contextstore"
	"lakeguide/internal/lexicon"
	"lakeguide/internal/types"
)

// stubLLM satisfies llm.Client for the smalltalk/help persona calls.
type stubLLM struct {
	reply string
	err   error
}

func (s stubLLM) Complete(context.Context, string) (string, error) {
	return s.reply, s.err
}

func (s stubLLM) CompleteWithSystem(context.Context, string, string) (string, error) {
	return s.reply, s.err
}

// newTestDispatcher wires a dispatcher against an httptest knowledge
// service and a fresh in-memory context store.
func newTestDispatcher(t *testing.T, handler http.HandlerFunc) (*Dispatcher, *contextstore.Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	kb := backend.NewClient(backend.Config{BaseURL: srv.URL, PageSize: 4})
	memory := contextstore.NewMemoryStore()
	t.Cleanup(func() { memory.Close() })
	store := contextstore.NewClient(memory, contextstore.DefaultTTLs(), nil)

	lex, err := lexicon.Open("", 0)
	require.NoError(t, err)
	t.Cleanup(func() { lex.Close() })

	an := analyzer.New(stubLLM{reply: "Hi! Ask me about Baikal."}, lex, nil)
	return NewDispatcher(kb, store, lex, an, nil, nil, nil), store
}

// decodeBody parses a JSON request body into a generic map.
func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
	return m
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func bioRequest(name string, action types.Action, attrs types.Attributes) *Request {
	entity := types.NewEntity(name, types.EntityBiological, "", nil)
	return &Request{
		UserID: "u1",
		Query:  name,
		Analysis: &types.Analysis{
			Action:     action,
			Entity:     &entity,
			Attributes: attrs,
		},
	}
}

func TestRouteDescribeCanonicalName(t *testing.T) {
	findCalled := false
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/species/find":
			findCalled = true
			w.WriteHeader(http.StatusNotFound)
		case "/species/description":
			body := decodeBody(t, r)
			assert.Equal(t, "Baikal seal", body["species_name"])
			writeJSON(t, w, map[string]any{"descriptions": []string{"The Baikal seal is a freshwater seal."}})
		default:
			t.Errorf("unexpected call to %s", r.URL.Path)
		}
	})

	// A fuzzy canonical hit resolves locally; the backend find endpoint
	// must not be consulted.
	responses := d.Route(context.Background(), bioRequest("baikal seel", types.ActionDescribe, nil))
	require.Len(t, responses, 1)
	assert.Equal(t, types.ResponseText, responses[0].Type)
	assert.Contains(t, responses[0].Content, "freshwater seal")
	assert.False(t, findCalled)
}

func TestRouteUnknownEntityShortCircuits(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("backend must not be called, got %s", r.URL.Path)
	})

	entity := types.NewEntity("glorb", types.EntityUnknown, "", nil)
	req := &Request{
		UserID:   "u1",
		Query:    "what is a glorb",
		Analysis: &types.Analysis{Action: types.ActionDescribe, Entity: &entity},
	}
	responses := d.Route(context.Background(), req)
	require.Len(t, responses, 1)
	assert.Equal(t, MsgUnknownObject, responses[0].Content)
}

func TestRouteUnhandledActionGetsCannedReply(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("backend must not be called, got %s", r.URL.Path)
	})

	req := &Request{
		UserID:   "u1",
		Query:    "hmm",
		Analysis: &types.Analysis{Action: types.ActionUnknown},
	}
	responses := d.Route(context.Background(), req)
	require.Len(t, responses, 1)
	assert.Equal(t, MsgCantDo, responses[0].Content)
}

func TestRouteNilAnalysis(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {})
	responses := d.Route(context.Background(), &Request{UserID: "u1", Query: "?"})
	require.Len(t, responses, 1)
	assert.Equal(t, MsgCouldNotUnderstand, responses[0].Content)
}

func TestHandlesWildcard(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.True(t, d.Handles(types.ActionDescribe, types.EntityBiological))
	assert.True(t, d.Handles(types.ActionShowMap, types.EntityGeoPlace))
	assert.True(t, d.Handles(types.ActionSmalltalk, entityAny))
	assert.False(t, d.Handles(types.ActionUnknown, types.EntityBiological))
}

func TestShowImageUnmatchedQualifiersRefused(t *testing.T) {
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("an unsatisfiable filter must not reach the backend, got %s", r.URL.Path)
	})

	req := bioRequest("Baikal seal", types.ActionShowImage, nil)
	req.Analysis.Unmatched = []string{"in thick fog"}

	responses := d.Route(context.Background(), req)
	require.Len(t, responses, 1)
	assert.Equal(t, types.ResponseText, responses[0].Type)
	assert.Contains(t, responses[0].Content, "in thick fog")

	// The refusal stores no relaxation state.
	_, ok := store.FallbackAttrs(context.Background(), "u1")
	assert.False(t, ok)
}

func TestShowImageSuccess(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/search", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "Baikal seal", body["species_name"])
		writeJSON(t, w, map[string]any{"images": []map[string]string{{"image_path": "seal-winter.jpg"}}})
	})

	responses := d.Route(context.Background(),
		bioRequest("Baikal seal", types.ActionShowImage, types.Attributes{types.AttrSeason: "Winter"}))
	require.Len(t, responses, 1)
	assert.Equal(t, types.ResponseImage, responses[0].Type)
	assert.Equal(t, "seal-winter.jpg", responses[0].Content)
}

func TestShowMapDegradesToText(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/geo/coords":
			writeJSON(t, w, map[string]any{"latitude": 53.2, "longitude": 107.3})
		case "/geo/map":
			// Interactive map URL missing: the renderer would get half a map.
			writeJSON(t, w, map[string]any{"names": []string{"Cape Khoboy"}, "static_map": "map.png"})
		default:
			t.Errorf("unexpected call to %s", r.URL.Path)
		}
	})

	entity := types.NewEntity("Olkhon Island", types.EntityGeoPlace, "", nil)
	req := &Request{
		UserID:   "u1",
		Query:    "map of Olkhon",
		Analysis: &types.Analysis{Action: types.ActionShowMap, Entity: &entity},
	}
	responses := d.Route(context.Background(), req)
	require.Len(t, responses, 1)
	assert.Equal(t, types.ResponseText, responses[0].Type)
	assert.Contains(t, responses[0].Content, "Olkhon Island")
}

func TestListObjectsExpandsGroups(t *testing.T) {
	var queried []string
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/geo/polygon", r.URL.Path)
		body := decodeBody(t, r)
		queried = append(queried, body["object_type"].(string))
		switch body["object_type"] {
		case "Reserves":
			writeJSON(t, w, map[string]any{"all_biological_names": []string{"Barguzinsky Reserve"}})
		default:
			writeJSON(t, w, map[string]any{"all_biological_names": []string{"Frolikhinsky Sanctuary"}})
		}
	})

	entity := types.NewEntity("protected areas", types.EntityGeoPlace, "", nil)
	req := &Request{
		UserID:   "u1",
		Query:    "list the protected areas",
		Analysis: &types.Analysis{Action: types.ActionListObjects, Entity: &entity},
	}
	responses := d.Route(context.Background(), req)
	require.Len(t, responses, 1)

	assert.Equal(t, []string{"Reserves", "Sanctuaries"}, queried)
	assert.Contains(t, responses[0].Content, "Barguzinsky Reserve")
	assert.Contains(t, responses[0].Content, "Frolikhinsky Sanctuary")
	assert.Contains(t, responses[0].Content, "I know 2")
}

func TestCountObjects(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"all_biological_names": []string{"Angara River", "Selenga River"}})
	})

	entity := types.NewEntity("rivers", types.EntityGeoPlace, "", nil)
	req := &Request{
		UserID:   "u1",
		Query:    "how many rivers are there",
		Analysis: &types.Analysis{Action: types.ActionCountObjects, Entity: &entity},
	}
	responses := d.Route(context.Background(), req)
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Content, "2")
	assert.NotContains(t, responses[0].Content, "Angara River",
		"count replies report the total, not the list")
}

func TestFindNearbyNeedsPlace(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("backend must not be called, got %s", r.URL.Path)
	})

	req := bioRequest("campsite", types.ActionFindNearby, nil)
	responses := d.Route(context.Background(), req)
	require.Len(t, responses, 1)
	assert.Equal(t, msgWhichPlace, responses[0].Content)
}

func TestFindNearbyInfrastructure(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/infra/find", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "campsite", body["object_type"])
		assert.Equal(t, "Khuzhir", body["area"])
		writeJSON(t, w, map[string]any{
			"all_biological_names": []string{"Camp Olkhon North"},
			"static_map":           "m.png",
			"interactive_map":      "https://map",
		})
	})

	subject := types.NewEntity("campsite", types.EntityInfrastructure, "Recreation", []string{"campsite"})
	place := types.NewEntity("Khuzhir", types.EntityGeoPlace, "", nil)
	req := &Request{
		UserID: "u1",
		Query:  "campsites near Khuzhir",
		Analysis: &types.Analysis{
			Action:    types.ActionFindNearby,
			Entity:    &subject,
			Secondary: &place,
		},
	}
	responses := d.Route(context.Background(), req)
	require.Len(t, responses, 1)
	assert.Equal(t, types.ResponseMap, responses[0].Type)
	assert.Contains(t, responses[0].Content, "Camp Olkhon North")
}

func TestSmalltalkUsesPersona(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {})

	req := &Request{
		UserID:   "u1",
		Query:    "hello!",
		Analysis: &types.Analysis{Action: types.ActionSmalltalk},
	}
	responses := d.Route(context.Background(), req)
	require.Len(t, responses, 1)
	assert.Equal(t, "Hi! Ask me about Baikal.", responses[0].Content)
}
