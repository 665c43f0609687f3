package actions

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"lakeguide/internal/contextstore"
	"lakeguide/internal/types"
)

// relaxationOrder fixes both which attributes get a removal probe and the
// order their buttons appear in. Author and date are never relaxed; the
// user asked for a specific photo, not a looser one.
var relaxationOrder = []string{
	types.AttrSeason,
	types.AttrHabitat,
	types.AttrFruitsPresent,
	types.AttrFlowering,
}

var relaxationLabels = map[string]string{
	types.AttrSeason:        "Without the season",
	types.AttrHabitat:       "Without the habitat",
	types.AttrFruitsPresent: "Without the fruits filter",
	types.AttrFlowering:     "Without the flowering filter",
}

const msgRelaxationOffer = "I couldn't find photos matching every detail. Want me to loosen the search?"

// relaxationOffers runs one removal probe per relaxable attribute present,
// plus an attribute-free probe, and offers a button for each probe that
// found something. Probes run concurrently under the short probe deadline;
// the button order stays fixed regardless of completion order. When no
// probe succeeds the reply is terminal and nothing is stored.
func (d *Dispatcher) relaxationOffers(ctx context.Context, req *Request, name string, attrs types.Attributes) []types.StructuredResponse {
	present := make([]string, 0, len(relaxationOrder))
	for _, key := range relaxationOrder {
		if _, ok := attrs[key]; ok {
			present = append(present, key)
		}
	}
	if len(present) == 0 && len(attrs) == 0 {
		// Nothing was filtered in the first place; relaxing cannot help.
		return []types.StructuredResponse{types.Text(MsgNothingFound)}
	}

	// One extra slot for the attribute-free probe. Each goroutine writes
	// its own index only.
	hits := make([]bool, len(present)+1)
	g := &errgroup.Group{}
	for i, key := range present {
		g.Go(func() error {
			pctx, cancel := d.backend.ProbeContext(ctx)
			defer cancel()
			res, err := d.backend.SearchImages(pctx, name, attrs.Without(key))
			hits[i] = err == nil && len(res.Images) > 0
			return nil
		})
	}
	g.Go(func() error {
		pctx, cancel := d.backend.ProbeContext(ctx)
		defer cancel()
		res, err := d.backend.SearchImages(pctx, name, nil)
		hits[len(present)] = err == nil && len(res.Images) > 0
		return nil
	})
	_ = g.Wait()

	buttons := make([]types.Button, 0, len(present)+1)
	for i, key := range present {
		if !hits[i] {
			continue
		}
		buttons = append(buttons, types.Button{
			Text:         relaxationLabels[key],
			CallbackData: types.Callback{Kind: types.CallbackDrop, Attribute: key}.Encode(),
		})
	}
	if hits[len(present)] {
		buttons = append(buttons, types.Button{
			Text:         fmt.Sprintf("Just %s", name),
			CallbackData: types.Callback{Kind: types.CallbackDropAll}.Encode(),
		})
	}
	if len(buttons) == 0 {
		return []types.StructuredResponse{types.Text(MsgNothingFound)}
	}

	d.store.SaveFallbackAttrs(ctx, req.UserID, &contextstore.FallbackAttributeContext{
		Object:     name,
		Action:     types.ActionShowImage,
		Attributes: attrs,
	})
	return []types.StructuredResponse{types.Clarification(msgRelaxationOffer, buttonRows(buttons, 2))}
}

// handleDrop consumes the stored attribute set and reruns the search with
// attr removed, or with no attributes when attr is empty. The context is
// single-use: a second click on the same menu sees it expired.
func (d *Dispatcher) handleDrop(ctx context.Context, userID string, debug bool, attr string) []types.StructuredResponse {
	fc, ok := d.store.FallbackAttrs(ctx, userID)
	if !ok {
		return []types.StructuredResponse{types.Text(MsgExpired)}
	}
	d.store.ClearFallbackAttrs(ctx, userID)

	var attrs types.Attributes
	if attr != "" {
		attrs = fc.Attributes.Without(attr)
	}

	action := fc.Action
	if action.IsZero() {
		action = types.ActionShowImage
	}
	entity := types.NewEntity(fc.Object, types.EntityBiological, "", nil)
	req := &Request{
		UserID: userID,
		Query:  fc.Object,
		Debug:  debug,
		Analysis: &types.Analysis{
			Action:     action,
			Entity:     &entity,
			Attributes: attrs,
		},
	}
	return d.Route(ctx, req)
}

// buttonRows chunks buttons into rows of at most perRow.
func buttonRows(buttons []types.Button, perRow int) [][]types.Button {
	if perRow <= 0 {
		perRow = 1
	}
	rows := make([][]types.Button, 0, (len(buttons)+perRow-1)/perRow)
	for len(buttons) > perRow {
		rows = append(rows, buttons[:perRow])
		buttons = buttons[perRow:]
	}
	if len(buttons) > 0 {
		rows = append(rows, buttons)
	}
	return rows
}
