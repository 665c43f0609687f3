package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadCallback is returned when a callback token does not decode to one of
// the known variants. Stale or hand-crafted tokens fail here, at a single
// validation point, instead of deep inside a handler.
var ErrBadCallback = errors.New("malformed callback token")

// CallbackKind enumerates the closed set of button callback variants.
type CallbackKind string

const (
	// CallbackPick selects candidate Index from a pending disambiguation list.
	CallbackPick CallbackKind = "pick"
	// CallbackMore requests the next page of disambiguation candidates.
	CallbackMore CallbackKind = "more"
	// CallbackDrop retries the last failed search without Attribute.
	CallbackDrop CallbackKind = "drop"
	// CallbackDropAll retries the last failed search with no attributes.
	CallbackDropAll CallbackKind = "drop_all"
	// CallbackCompare runs the offered comparison of the last two entities.
	CallbackCompare CallbackKind = "compare"
	// CallbackQA forwards the last query to the plain Q&A fallback service.
	CallbackQA CallbackKind = "qa"
)

// Callback is the decoded form of an opaque button token.
type Callback struct {
	Kind      CallbackKind
	Index     int    // CallbackPick only
	Attribute string // CallbackDrop only
}

// Encode serializes a callback into the opaque token carried by a button.
func (c Callback) Encode() string {
	switch c.Kind {
	case CallbackPick:
		return fmt.Sprintf("pick:%d", c.Index)
	case CallbackDrop:
		return "drop:" + c.Attribute
	case CallbackDropAll:
		return "drop:all"
	default:
		return string(c.Kind)
	}
}

// DecodeCallback parses an opaque token echoed back by the channel.
func DecodeCallback(token string) (Callback, error) {
	head, rest, cut := strings.Cut(token, ":")
	switch head {
	case "pick":
		if !cut {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, token)
		}
		idx, err := strconv.Atoi(rest)
		if err != nil || idx < 0 {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, token)
		}
		return Callback{Kind: CallbackPick, Index: idx}, nil
	case "more":
		return Callback{Kind: CallbackMore}, nil
	case "drop":
		if !cut || rest == "" {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, token)
		}
		if rest == "all" {
			return Callback{Kind: CallbackDropAll}, nil
		}
		if !validDropAttribute[rest] {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, token)
		}
		return Callback{Kind: CallbackDrop, Attribute: rest}, nil
	case "compare":
		return Callback{Kind: CallbackCompare}, nil
	case "qa":
		return Callback{Kind: CallbackQA}, nil
	default:
		return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, token)
	}
}

// validDropAttribute limits drop tokens to the attributes the relaxation
// fallback actually probes.
var validDropAttribute = map[string]bool{
	AttrSeason:        true,
	AttrHabitat:       true,
	AttrFruitsPresent: true,
	AttrFlowering:     true,
}
