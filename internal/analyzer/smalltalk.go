package analyzer

import (
	"context"
	"fmt"
)

// Canned replies used when the persona calls fail. The assistant must
// always say something.
const (
	cannedSmalltalk = "Glad to hear from you! Ask me about the animals, plants and places of the Baikal region."
	cannedHelp      = "I can describe Baikal species and places, show photos and maps, find campsites and trails nearby, and list or count objects like reserves and rivers. Just ask in plain language."
)

const smalltalkPersona = `You are a friendly nature-guide assistant for the Lake Baikal region. Reply to the user's social message in one or two warm sentences, then gently steer toward what you can help with. Plain text only.`

const helpPersona = `You are a nature-guide assistant for the Lake Baikal region. The user asks what you can do. Answer in a short paragraph: you describe species and places, show photos and maps, find nearby infrastructure, and list or count objects. Plain text only.`

// Smalltalk answers a social pleasantry with a single persona call.
// These are deliberately outside the structured retry loop; a failure
// falls back to a canned line.
func (a *Analyzer) Smalltalk(ctx context.Context, query string) string {
	resp, err := a.client.CompleteWithSystem(ctx, smalltalkPersona, fmt.Sprintf("User: %s", query))
	if err != nil || resp == "" {
		return cannedSmalltalk
	}
	return resp
}

// Capabilities answers a "what can you do" question.
func (a *Analyzer) Capabilities(ctx context.Context, query string) string {
	resp, err := a.client.CompleteWithSystem(ctx, helpPersona, fmt.Sprintf("User: %s", query))
	if err != nil || resp == "" {
		return cannedHelp
	}
	return resp
}
