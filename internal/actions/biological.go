package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lakeguide/internal/backend"
	"lakeguide/internal/contextstore"
	"lakeguide/internal/types"
)

// handleDescribe resolves the subject and fetches its description. When the
// dialogue layer flagged a comparison opportunity, a compare offer rides
// along after the description.
func (d *Dispatcher) handleDescribe(ctx context.Context, req *Request) []types.StructuredResponse {
	if req.Analysis.Entity == nil {
		return []types.StructuredResponse{types.Text(msgWhichObject)}
	}
	name, menu, ok := d.resolveSpecies(ctx, req.UserID, req.Analysis.Entity.Name)
	if !ok {
		return menu
	}
	return d.describeResolved(ctx, req, name)
}

// describeResolved fetches and renders the description of an already
// resolved name. Shared with the disambiguation pick path.
func (d *Dispatcher) describeResolved(ctx context.Context, req *Request, name string) []types.StructuredResponse {
	res, err := d.backend.GetDescription(ctx, name, req.Debug)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return []types.StructuredResponse{types.Text(MsgNothingFound)}
		}
		d.logger.Warn("description lookup failed", zap.String("name", name), zap.Error(err))
		return []types.StructuredResponse{types.Text(MsgBackendDown)}
	}

	responses := []types.StructuredResponse{
		types.Text(strings.Join(res.Texts(), "\n\n")),
	}
	if req.Debug && len(res.Raw) > 0 {
		responses = append(responses, types.Debug(string(res.Raw)))
	}

	if req.CompareWith != nil && !strings.EqualFold(req.CompareWith.Name, name) {
		d.store.SaveCompare(ctx, req.UserID, &contextstore.CompareContext{
			First:  name,
			Second: req.CompareWith.Name,
		})
		offer := types.Clarification(
			fmt.Sprintf("Want me to compare %s with %s?", name, req.CompareWith.Name),
			[][]types.Button{{{
				Text:         "Compare them",
				CallbackData: types.Callback{Kind: types.CallbackCompare}.Encode(),
			}}},
		)
		responses = append(responses, offer)
	}
	return responses
}

// handleShowImage searches images of the subject filtered by the extracted
// attributes. Qualifier phrases that mapped to no known attribute are an
// unsatisfiable request: refuse up front instead of silently ignoring them
// and returning photos that do not match what the user asked for.
func (d *Dispatcher) handleShowImage(ctx context.Context, req *Request) []types.StructuredResponse {
	a := req.Analysis
	if a.Entity == nil {
		return []types.StructuredResponse{types.Text(msgWhichObject)}
	}
	if len(a.Unmatched) > 0 {
		return []types.StructuredResponse{types.Text(fmt.Sprintf(
			"I can't filter photos by %q. Try season, habitat, flowering or fruits.",
			strings.Join(a.Unmatched, ", ")))}
	}

	name, menu, ok := d.resolveSpecies(ctx, req.UserID, a.Entity.Name)
	if !ok {
		return menu
	}

	res, err := d.backend.SearchImages(ctx, name, a.Attributes)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return d.relaxationOffers(ctx, req, name, a.Attributes)
		}
		d.logger.Warn("image search failed", zap.String("name", name), zap.Error(err))
		return []types.StructuredResponse{types.Text(MsgBackendDown)}
	}

	responses := []types.StructuredResponse{types.Image(res.Images[0].ImagePath)}
	if req.Debug && len(res.Raw) > 0 {
		responses = append(responses, types.Debug(string(res.Raw)))
	}
	return responses
}

// handleCompare answers an explicit "compare X and Y" request.
func (d *Dispatcher) handleCompare(ctx context.Context, req *Request) []types.StructuredResponse {
	a := req.Analysis
	if a.Entity == nil || a.Secondary == nil {
		return []types.StructuredResponse{types.Text("Name the two objects you want compared.")}
	}
	return d.compareByNames(ctx, req, a.Entity.Name, a.Secondary.Name)
}

// compareByNames fetches both descriptions and renders them side by side.
// Names go through canonical matching only; a typo here answers with a
// not-found line rather than opening two competing disambiguation menus.
func (d *Dispatcher) compareByNames(ctx context.Context, req *Request, first, second string) []types.StructuredResponse {
	if canon, ok := d.lex.MatchCanonical(first); ok {
		first = canon
	}
	if canon, ok := d.lex.MatchCanonical(second); ok {
		second = canon
	}

	firstRes, err := d.backend.GetDescription(ctx, first, false)
	if err != nil {
		return d.compareFailure(first, err)
	}
	secondRes, err := d.backend.GetDescription(ctx, second, false)
	if err != nil {
		return d.compareFailure(second, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s and %s side by side.\n\n", first, second)
	fmt.Fprintf(&b, "%s:\n%s\n\n", first, strings.Join(firstRes.Texts(), "\n"))
	fmt.Fprintf(&b, "%s:\n%s", second, strings.Join(secondRes.Texts(), "\n"))
	return []types.StructuredResponse{types.Text(b.String())}
}

func (d *Dispatcher) compareFailure(name string, err error) []types.StructuredResponse {
	if errors.Is(err, backend.ErrNotFound) {
		return []types.StructuredResponse{types.Text(fmt.Sprintf(
			"I don't have enough information about %s to compare it.", name))}
	}
	d.logger.Warn("comparison lookup failed", zap.String("name", name), zap.Error(err))
	return []types.StructuredResponse{types.Text(MsgBackendDown)}
}
