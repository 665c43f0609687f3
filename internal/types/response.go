package types

// ResponseType distinguishes how the channel renderer should present a
// structured response.
type ResponseType string

const (
	ResponseText             ResponseType = "text"
	ResponseImage            ResponseType = "image"
	ResponseFile             ResponseType = "file"
	ResponseMap              ResponseType = "map"
	ResponseClarification    ResponseType = "clarification"
	ResponseClarificationMap ResponseType = "clarification_map"
	ResponseDebug            ResponseType = "debug"
)

// Button is one selectable option rendered under a response. Exactly one of
// CallbackData or URL is set.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// StructuredResponse is the channel-agnostic output unit produced by action
// handlers and consumed by the (external) channel renderer.
type StructuredResponse struct {
	Type           ResponseType `json:"type"`
	Content        string       `json:"content,omitempty"`
	Buttons        [][]Button   `json:"buttons,omitempty"`
	StaticMap      string       `json:"static_map,omitempty"`
	InteractiveMap string       `json:"interactive_map,omitempty"`
	UsedObjects    []string     `json:"used_objects,omitempty"`
	DebugInfo      string       `json:"debug_info,omitempty"`
}

// Text builds a plain text response.
func Text(content string) StructuredResponse {
	return StructuredResponse{Type: ResponseText, Content: content}
}

// Image builds an image response pointing at a backend image path.
func Image(path string) StructuredResponse {
	return StructuredResponse{Type: ResponseImage, Content: path}
}

// Map builds a map response. Both map URLs must be present; otherwise the
// handler degrades to plain text so the renderer never receives a half map.
func Map(content, staticMap, interactiveMap string, used []string) StructuredResponse {
	if staticMap == "" || interactiveMap == "" {
		return StructuredResponse{Type: ResponseText, Content: content, UsedObjects: used}
	}
	return StructuredResponse{
		Type:           ResponseMap,
		Content:        content,
		StaticMap:      staticMap,
		InteractiveMap: interactiveMap,
		UsedObjects:    used,
	}
}

// Clarification builds a choice-menu response.
func Clarification(content string, buttons [][]Button) StructuredResponse {
	return StructuredResponse{Type: ResponseClarification, Content: content, Buttons: buttons}
}

// Debug builds a diagnostics response, emitted only when debug mode is on.
func Debug(info string) StructuredResponse {
	return StructuredResponse{Type: ResponseDebug, DebugInfo: info}
}
