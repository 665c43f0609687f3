package analyzer

import (
	"fmt"
	"strings"

	"lakeguide/internal/types"
)

// analyzerSystemPrompt fixes the taxonomy of actions and entity types the
// model may emit, with worked examples covering the common shapes.
const analyzerSystemPrompt = `You are the intent analyzer for a nature-guide assistant covering the Lake Baikal region: its species, places, and visitor infrastructure.

Classify the user's utterance into exactly one JSON object. Output ONLY the JSON object, no prose.

## ACTIONS
- describe: tell about an object ("tell me about the Baikal seal")
- show_image: show a photo ("show me larch in autumn")
- show_map: show an object or area on a map ("where is Cape Khoboy")
- find_nearby: objects near a place ("what grows near Listvyanka")
- list_objects: enumerate objects of a category ("which reserves are there")
- count_objects: count objects of a category ("how many rivers flow in")
- compare: compare two objects ("compare the larch and the pine")
- small_talk: greetings and social chatter
- help: questions about what the assistant can do
- unknown: none of the above

## ENTITY TYPES
- biological: species of flora or fauna (category "Flora" or "Fauna")
- geo_place: named geographic feature or settlement
- infrastructure: visitor facilities (category one of Recreation, Accommodation, Transport, Service; subcategory e.g. campsite, pier, viewpoint, museum, trail)
- unknown: subject cannot be typed

## REQUIRED JSON SCHEMA
{
  "action": "one of the actions above",
  "primary_entity": {"name": "...", "type": "...", "category": "...", "subcategory": ["..."]} or null,
  "secondary_entity": { same shape } or null,
  "qualifiers": ["raw qualifier phrases, e.g. 'in winter', 'in the forest'"],
  "search_query": "free-text residue useful as a search string, or empty"
}

## EXAMPLES
Input: "Tell me about the Baikal seal"
{"action": "describe", "primary_entity": {"name": "Baikal seal", "type": "biological", "category": "Fauna"}, "secondary_entity": null, "qualifiers": [], "search_query": ""}

Input: "show me larch in autumn"
{"action": "show_image", "primary_entity": {"name": "larch", "type": "biological", "category": "Flora"}, "secondary_entity": null, "qualifiers": ["in autumn"], "search_query": ""}

Input: "what campsites are there on the Holy Nose Peninsula"
{"action": "find_nearby", "primary_entity": {"name": "campsite", "type": "infrastructure", "category": "Recreation", "subcategory": ["campsite"]}, "secondary_entity": {"name": "Holy Nose Peninsula", "type": "geo_place"}, "qualifiers": [], "search_query": ""}

Input: "and in winter?"
{"action": "unknown", "primary_entity": null, "secondary_entity": null, "qualifiers": ["in winter"], "search_query": ""}

Input: "hi there!"
{"action": "small_talk", "primary_entity": null, "secondary_entity": null, "qualifiers": [], "search_query": ""}

Leave fields null/empty rather than guessing. Follow-up fragments legitimately have a null primary_entity; the dialogue layer resolves them.`

// responseDenylist filters boilerplate refusals out of the history block:
// feeding "I couldn't understand that" back to the model as context only
// teaches it to repeat the refusal.
var responseDenylist = []string{
	"couldn't understand",
	"can't do that",
	"don't know this object",
	"selection has expired",
	"nothing found",
}

func denylisted(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range responseDenylist {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// buildUserPrompt assembles the user prompt: the optional single prior turn
// and the current utterance. The prior response is included only when it
// carries real content; a caption stands in when there is no plain text.
func buildUserPrompt(query string, prior *types.Turn) string {
	var sb strings.Builder

	if prior != nil && prior.Query != "" {
		sb.WriteString("## Previous Turn\n")
		sb.WriteString(fmt.Sprintf("User: %s\n", prior.Query))

		response := prior.Response
		if response == "" || denylisted(response) {
			response = prior.Caption
		}
		if response != "" && !denylisted(response) {
			if len(response) > 400 {
				response = response[:400] + "..."
			}
			sb.WriteString(fmt.Sprintf("Assistant: %s\n", response))
		}
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString(fmt.Sprintf("User Input: %q", query))
	return sb.String()
}
