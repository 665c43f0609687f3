// Package types defines the core domain types shared by the dialogue
// pipeline: the analyzed representation of a user utterance, the tagged
// entity model with its validation rules, and the channel-agnostic
// structured responses produced by action handlers.
package types

import "strings"

// =============================================================================
// ACTIONS
// =============================================================================

// Action is the user's intended operation as classified by the analyzer.
type Action string

const (
	ActionDescribe     Action = "describe"
	ActionShowImage    Action = "show_image"
	ActionShowMap      Action = "show_map"
	ActionFindNearby   Action = "find_nearby"
	ActionListObjects  Action = "list_objects"
	ActionCountObjects Action = "count_objects"
	ActionCompare      Action = "compare"
	ActionSmalltalk    Action = "small_talk"
	ActionHelp         Action = "help"
	ActionUnknown      Action = "unknown"
)

var knownActions = map[Action]bool{
	ActionDescribe:     true,
	ActionShowImage:    true,
	ActionShowMap:      true,
	ActionFindNearby:   true,
	ActionListObjects:  true,
	ActionCountObjects: true,
	ActionCompare:      true,
	ActionSmalltalk:    true,
	ActionHelp:         true,
	ActionUnknown:      true,
}

// ParseAction maps a raw action string to a known Action.
// Unrecognized values coerce to ActionUnknown rather than failing, so a
// creative LLM answer never aborts a turn.
func ParseAction(raw string) Action {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	if knownActions[a] {
		return a
	}
	return ActionUnknown
}

// IsZero reports whether the action is absent or unknown.
func (a Action) IsZero() bool {
	return a == "" || a == ActionUnknown
}

// =============================================================================
// ENTITIES
// =============================================================================

// EntityType tags what kind of object an entity refers to.
type EntityType string

const (
	EntityBiological     EntityType = "biological"
	EntityGeoPlace       EntityType = "geo_place"
	EntityInfrastructure EntityType = "infrastructure"
	EntityUnknown        EntityType = "unknown"
)

// ParseEntityType maps a raw type string to a known EntityType.
func ParseEntityType(raw string) EntityType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "biological", "bio", "species":
		return EntityBiological
	case "geo_place", "geo", "place", "location":
		return EntityGeoPlace
	case "infrastructure", "infra", "poi":
		return EntityInfrastructure
	default:
		return EntityUnknown
	}
}

// Biological coarse categories.
const (
	CategoryFlora = "Flora"
	CategoryFauna = "Fauna"
)

// Infrastructure category whitelist. Anything else coerces to the default.
var infraCategories = map[string]bool{
	"Recreation":    true,
	"Accommodation": true,
	"Transport":     true,
	"Service":       true,
}

const defaultInfraCategory = "Recreation"

// Infrastructure subcategory whitelist. Invalid entries are dropped.
var infraSubcategories = map[string]bool{
	"campsite":  true,
	"pier":      true,
	"viewpoint": true,
	"museum":    true,
	"trail":     true,
	"spring":    true,
	"shelter":   true,
	"parking":   true,
	"cafe":      true,
	"bathhouse": true,
}

// Entity is one resolved object mention. Constructed fresh per turn by
// NewEntity; never shared across turns.
type Entity struct {
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Category    string     `json:"category,omitempty"`
	Subcategory []string   `json:"subcategory,omitempty"`
}

// NewEntity builds an Entity and enforces the per-type shape rules:
//   - biological: no subcategories, category limited to Flora/Fauna
//   - geo place: no category, no subcategories
//   - infrastructure: category coerced into the whitelist, subcategories
//     filtered against the whitelist
//
// Violations are repaired, not rejected; the analyzer retry loop only deals
// with structural problems, not vocabulary drift.
func NewEntity(name string, typ EntityType, category string, subcategory []string) Entity {
	e := Entity{Name: strings.TrimSpace(name), Type: typ}
	switch typ {
	case EntityBiological:
		if category == CategoryFlora || category == CategoryFauna {
			e.Category = category
		}
	case EntityInfrastructure:
		if infraCategories[category] {
			e.Category = category
		} else {
			e.Category = defaultInfraCategory
		}
		for _, sub := range subcategory {
			s := strings.ToLower(strings.TrimSpace(sub))
			if infraSubcategories[s] {
				e.Subcategory = append(e.Subcategory, s)
			}
		}
	}
	return e
}

// SameSubject reports whether two entities name the same object,
// case-insensitively. Nil entities never match anything.
func (e *Entity) SameSubject(other *Entity) bool {
	if e == nil || other == nil {
		return false
	}
	return strings.EqualFold(e.Name, other.Name)
}

// =============================================================================
// ATTRIBUTES
// =============================================================================

// Recognized attribute keys.
const (
	AttrSeason        = "season"
	AttrHabitat       = "habitat"
	AttrCloudiness    = "cloudiness"
	AttrFaunaType     = "fauna_type"
	AttrFloraType     = "flora_type"
	AttrFlowering     = "flowering"
	AttrFruitsPresent = "fruits_present"
	AttrAuthor        = "author"
	AttrDate          = "date"
)

// Attributes maps qualifier keys to values extracted from the utterance.
type Attributes map[string]string

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// MergeOver layers a on top of prior: every key in a wins on collision.
func (a Attributes) MergeOver(prior Attributes) Attributes {
	if len(prior) == 0 {
		return a.Clone()
	}
	out := prior.Clone()
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Without returns a copy with one key removed.
func (a Attributes) Without(key string) Attributes {
	out := a.Clone()
	delete(out, key)
	return out
}

// =============================================================================
// ANALYSIS / TURN
// =============================================================================

// Analysis is the structured representation of one utterance.
// Fields may be nil/empty when the analyzer could not resolve them; the
// dialogue manager fills gaps from the prior turn.
type Analysis struct {
	Action      Action     `json:"action"`
	Entity      *Entity    `json:"entity,omitempty"`
	Secondary   *Entity    `json:"secondary,omitempty"`
	Attributes  Attributes `json:"attributes,omitempty"`
	SearchQuery string     `json:"search_query,omitempty"`

	// Unmatched holds qualifier phrases the classifier could not map to any
	// known attribute key. Kept separate so an unsatisfiable request is
	// distinguishable from an ordinary empty result.
	Unmatched []string `json:"unmatched,omitempty"`
}

// Clone returns a deep copy of the analysis.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	out := *a
	if a.Entity != nil {
		e := *a.Entity
		e.Subcategory = append([]string(nil), a.Entity.Subcategory...)
		out.Entity = &e
	}
	if a.Secondary != nil {
		e := *a.Secondary
		e.Subcategory = append([]string(nil), a.Secondary.Subcategory...)
		out.Secondary = &e
	}
	out.Attributes = a.Attributes.Clone()
	out.Unmatched = append([]string(nil), a.Unmatched...)
	return &out
}

// Turn is the persisted record of the most recent handled utterance.
// Created once per inbound message and superseded, never mutated.
type Turn struct {
	UserID   string     `json:"user_id"`
	Query    string     `json:"query"`
	Action   Action     `json:"action"`
	Entity   *Entity    `json:"entity,omitempty"`
	Attrs    Attributes `json:"attributes,omitempty"`
	Response string     `json:"response,omitempty"`
	Caption  string     `json:"caption,omitempty"`
}
