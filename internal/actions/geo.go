package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lakeguide/internal/backend"
	"lakeguide/internal/types"
)

const (
	// mapRadiusKm bounds the rendered map around a single geocoded point.
	mapRadiusKm = 2.0
	// nearbyBufferKm widens a place polygon for "what lives near X" queries.
	nearbyBufferKm = 5.0
	// defaultRegion scopes list and count queries that name no place.
	defaultRegion = "Baikal"
	// maxListedNames caps the bulleted list; the count line still reports
	// the full total.
	maxListedNames = 25
)

// handleShowMap geocodes the subject and renders a map around it. The
// response degrades to plain text when the renderer returns only one of the
// two map URLs.
func (d *Dispatcher) handleShowMap(ctx context.Context, req *Request) []types.StructuredResponse {
	a := req.Analysis
	if a.Entity == nil {
		return []types.StructuredResponse{types.Text(msgWhichObject)}
	}
	name := a.Entity.Name
	if canon, ok := d.lex.MatchCanonical(name); ok {
		name = canon
	}

	coords, err := d.backend.GetCoords(ctx, name)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return []types.StructuredResponse{types.Text(fmt.Sprintf("I couldn't place %q on the map.", name))}
		}
		d.logger.Warn("geocoding failed", zap.String("name", name), zap.Error(err))
		return []types.StructuredResponse{types.Text(MsgBackendDown)}
	}

	res, err := d.backend.CoordsToMap(ctx, *coords, mapRadiusKm, name, string(a.Entity.Type))
	if err != nil {
		d.logger.Warn("map rendering failed", zap.String("name", name), zap.Error(err))
		return []types.StructuredResponse{types.Text(MsgBackendDown)}
	}

	content := fmt.Sprintf("Here is %s on the map.", name)
	return []types.StructuredResponse{types.Map(content, res.StaticMap, res.InteractiveMap, res.Names)}
}

// handleFindNearby looks for the subject around a geo place. The place
// comes from the secondary entity, or from the primary when the user asked
// "what is near Olkhon" with no subject of its own.
func (d *Dispatcher) handleFindNearby(ctx context.Context, req *Request) []types.StructuredResponse {
	a := req.Analysis
	place, subject := nearbyPlaceAndSubject(a)
	if place == nil {
		return []types.StructuredResponse{types.Text(msgWhichPlace)}
	}
	placeName := place.Name
	if canon, ok := d.lex.MatchCanonical(placeName); ok {
		placeName = canon
	}

	var (
		res *backend.AreaResult
		err error
	)
	switch {
	case subject != nil && subject.Type == types.EntityInfrastructure:
		objectType := subject.Category
		if len(subject.Subcategory) > 0 {
			objectType = subject.Subcategory[0]
		}
		literal := ""
		if d.lex.ShouldForward(subject.Name) {
			literal = subject.Name
		}
		res, err = d.backend.FindInfrastructure(ctx, literal, objectType, placeName)
	case subject != nil:
		res, err = d.backend.ObjectsInPolygon(ctx, placeName, nearbyBufferKm, d.subjectFilter(subject), "")
	default:
		res, err = d.backend.ObjectsInPolygon(ctx, placeName, nearbyBufferKm, "", "")
	}
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return []types.StructuredResponse{types.Text(MsgNothingFound)}
		}
		d.logger.Warn("nearby search failed", zap.String("place", placeName), zap.Error(err))
		return []types.StructuredResponse{types.Text(MsgBackendDown)}
	}
	if len(res.Names) == 0 {
		return []types.StructuredResponse{types.Text(MsgNothingFound)}
	}

	content := fmt.Sprintf("Near %s I found:\n%s", placeName, bulletList(res.Names))
	return []types.StructuredResponse{types.Map(content, res.StaticMap, res.InteractiveMap, res.Names)}
}

// handleListObjects lists every object of the named category, expanding
// group aliases like "protected areas" into their member categories.
func (d *Dispatcher) handleListObjects(ctx context.Context, req *Request) []types.StructuredResponse {
	names, responses, ok := d.collectCategory(ctx, req)
	if !ok {
		return responses
	}
	content := fmt.Sprintf("I know %d:\n%s", len(names), bulletList(names))
	return append([]types.StructuredResponse{types.Text(content)}, responses...)
}

// handleCountObjects reports only the total.
func (d *Dispatcher) handleCountObjects(ctx context.Context, req *Request) []types.StructuredResponse {
	names, responses, ok := d.collectCategory(ctx, req)
	if !ok {
		return responses
	}
	category := req.Analysis.Entity.Name
	content := fmt.Sprintf("I count %d objects matching %q.", len(names), category)
	return append([]types.StructuredResponse{types.Text(content)}, responses...)
}

// collectCategory gathers object names across the expanded categories of
// the subject, scoped to the secondary place when one was named. ok=false
// means the returned responses already answer the turn.
func (d *Dispatcher) collectCategory(ctx context.Context, req *Request) ([]string, []types.StructuredResponse, bool) {
	a := req.Analysis
	if a.Entity == nil {
		return nil, []types.StructuredResponse{types.Text(msgWhichObject)}, false
	}

	area := defaultRegion
	if a.Secondary != nil && a.Secondary.Type == types.EntityGeoPlace {
		area = a.Secondary.Name
		if canon, ok := d.lex.MatchCanonical(area); ok {
			area = canon
		}
	}

	var names []string
	seen := make(map[string]bool)
	for _, category := range d.lex.ExpandGroup(a.Entity.Name) {
		var (
			res *backend.AreaResult
			err error
		)
		if a.Entity.Type == types.EntityInfrastructure {
			res, err = d.backend.FindInfrastructure(ctx, "", category, area)
		} else {
			res, err = d.backend.ObjectsInPolygon(ctx, area, 0, category, "")
		}
		if err != nil {
			if errors.Is(err, backend.ErrNotFound) {
				continue
			}
			d.logger.Warn("category listing failed",
				zap.String("category", category), zap.String("area", area), zap.Error(err))
			return nil, []types.StructuredResponse{types.Text(MsgBackendDown)}, false
		}
		for _, name := range res.Names {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return nil, []types.StructuredResponse{types.Text(MsgNothingFound)}, false
	}
	return names, nil, true
}

// nearbyPlaceAndSubject untangles which entity anchors the search and which
// is being searched for.
func nearbyPlaceAndSubject(a *types.Analysis) (place, subject *types.Entity) {
	if a.Secondary != nil && a.Secondary.Type == types.EntityGeoPlace {
		return a.Secondary, a.Entity
	}
	if a.Entity != nil && a.Entity.Type == types.EntityGeoPlace {
		return a.Entity, nil
	}
	return nil, a.Entity
}

// subjectFilter picks the backend type filter for a biological subject: the
// coarse category when the analyzer set one, otherwise the normalized name.
func (d *Dispatcher) subjectFilter(subject *types.Entity) string {
	if subject.Category != "" {
		return subject.Category
	}
	return d.lex.Normalize(subject.Name)
}

// bulletList renders names one per line, truncated past maxListedNames.
func bulletList(names []string) string {
	shown := names
	truncated := 0
	if len(shown) > maxListedNames {
		truncated = len(shown) - maxListedNames
		shown = shown[:maxListedNames]
	}
	var b strings.Builder
	for _, name := range shown {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	if truncated > 0 {
		fmt.Fprintf(&b, "...and %d more", truncated)
	}
	return strings.TrimRight(b.String(), "\n")
}
