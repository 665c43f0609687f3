package actions

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeguide/internal/types"
)

// pagedSableBackend serves a paged candidate list for the term "sable":
// eight fictional matches delivered four at a time.
func pagedSableBackend(t *testing.T) (http.HandlerFunc, *[]int) {
	all := []string{
		"Sable (lake form)", "Sable (mountain form)", "Stone sable", "Forest sable",
		"River sable", "Steppe sable", "Coastal sable", "Island sable",
	}
	var offsets []int
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/species/find":
			body := decodeBody(t, r)
			offset := int(body["offset"].(float64))
			limit := int(body["limit"].(float64))
			offsets = append(offsets, offset)

			if offset >= len(all) {
				writeJSON(t, w, map[string]any{"status": "not_found"})
				return
			}
			end := offset + limit
			if end > len(all) {
				end = len(all)
			}
			writeJSON(t, w, map[string]any{
				"status":   "ambiguous",
				"matches":  all[offset:end],
				"has_more": end < len(all),
			})
		case "/species/description":
			body := decodeBody(t, r)
			writeJSON(t, w, map[string]any{
				"descriptions": []string{fmt.Sprintf("All about %s.", body["species_name"])},
			})
		default:
			t.Errorf("unexpected call to %s", r.URL.Path)
		}
	}
	return handler, &offsets
}

func TestDisambiguationMenu(t *testing.T) {
	handler, _ := pagedSableBackend(t)
	d, store := newTestDispatcher(t, handler)

	responses := d.Route(context.Background(), bioRequest("sable", types.ActionDescribe, nil))
	require.Len(t, responses, 1)
	require.Equal(t, types.ResponseClarification, responses[0].Type)

	// Four candidate rows plus the pagination row.
	require.Len(t, responses[0].Buttons, 5)
	assert.Equal(t, "pick:0", responses[0].Buttons[0][0].CallbackData)
	assert.Equal(t, "Sable (lake form)", responses[0].Buttons[0][0].Text)
	assert.Equal(t, "more", responses[0].Buttons[4][0].CallbackData)

	dc, ok := store.Disambiguation(context.Background(), "u1")
	require.True(t, ok)
	assert.Equal(t, "sable", dc.OriginalTerm)
	assert.Equal(t, 0, dc.Offset)
	assert.True(t, dc.HasMore)
}

func TestDisambiguationPickDescribes(t *testing.T) {
	handler, _ := pagedSableBackend(t)
	d, store := newTestDispatcher(t, handler)
	ctx := context.Background()

	d.Route(ctx, bioRequest("sable", types.ActionDescribe, nil))

	responses := d.HandleCallback(ctx, "u1", "pick:2")
	require.Len(t, responses, 1)
	assert.Equal(t, types.ResponseText, responses[0].Type)
	assert.Contains(t, responses[0].Content, "Stone sable")

	// The pick consumed the menu.
	_, ok := store.Disambiguation(ctx, "u1")
	assert.False(t, ok)
}

func TestDisambiguationPickOutOfRange(t *testing.T) {
	handler, _ := pagedSableBackend(t)
	d, _ := newTestDispatcher(t, handler)
	ctx := context.Background()

	d.Route(ctx, bioRequest("sable", types.ActionDescribe, nil))

	responses := d.HandleCallback(ctx, "u1", "pick:9")
	require.Len(t, responses, 1)
	assert.Equal(t, MsgExpired, responses[0].Content)
}

func TestDisambiguationPickWithoutMenu(t *testing.T) {
	handler, _ := pagedSableBackend(t)
	d, _ := newTestDispatcher(t, handler)

	responses := d.HandleCallback(context.Background(), "u1", "pick:0")
	require.Len(t, responses, 1)
	assert.Equal(t, MsgExpired, responses[0].Content)
}

func TestDisambiguationPaginationAdvancesMonotonically(t *testing.T) {
	handler, offsets := pagedSableBackend(t)
	d, store := newTestDispatcher(t, handler)
	ctx := context.Background()

	d.Route(ctx, bioRequest("sable", types.ActionDescribe, nil))
	second := d.HandleCallback(ctx, "u1", "more")
	require.Equal(t, types.ResponseClarification, second[0].Type)
	assert.Equal(t, "River sable", second[0].Buttons[0][0].Text,
		"the second page must not repeat first-page candidates")

	dc, ok := store.Disambiguation(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, 4, dc.Offset)
	assert.False(t, dc.HasMore)

	// A further "more" walks past the end and closes the menu.
	third := d.HandleCallback(ctx, "u1", "more")
	assert.Contains(t, third[0].Content, "No more matches")
	_, ok = store.Disambiguation(ctx, "u1")
	assert.False(t, ok)

	// Requested offsets only ever grow.
	require.GreaterOrEqual(t, len(*offsets), 3)
	for i := 1; i < len(*offsets); i++ {
		assert.Greater(t, (*offsets)[i], (*offsets)[i-1])
	}
}

func TestCompareCallbackConsumesStoredPair(t *testing.T) {
	d, store := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/species/description", r.URL.Path)
		body := decodeBody(t, r)
		writeJSON(t, w, map[string]any{
			"descriptions": []string{fmt.Sprintf("Notes on %s.", body["species_name"])},
		})
	})
	ctx := context.Background()

	entity := types.NewEntity("Goat willow", types.EntityBiological, types.CategoryFlora, nil)
	prior := types.NewEntity("Daurian willow", types.EntityBiological, types.CategoryFlora, nil)
	req := &Request{
		UserID:      "u1",
		Query:       "describe the goat willow",
		Analysis:    &types.Analysis{Action: types.ActionDescribe, Entity: &entity},
		CompareWith: &prior,
	}

	responses := d.Route(ctx, req)
	require.Len(t, responses, 2)
	assert.Equal(t, types.ResponseClarification, responses[1].Type)
	assert.Equal(t, "compare", responses[1].Buttons[0][0].CallbackData)

	comparison := d.HandleCallback(ctx, "u1", "compare")
	require.Len(t, comparison, 1)
	assert.Contains(t, comparison[0].Content, "Goat willow")
	assert.Contains(t, comparison[0].Content, "Daurian willow")

	// The stored pair is single-use.
	again := d.HandleCallback(ctx, "u1", "compare")
	assert.Equal(t, MsgExpired, again[0].Content)

	_, ok := store.Compare(ctx, "u1")
	assert.False(t, ok)
}
