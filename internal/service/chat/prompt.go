package chat

import (
	"fmt"
	"strings"
)

type PromptInput struct {
	PersonaName  string
	Instructions string
	Memories     []string
	History      string
	Utterance    string
}

// AssemblePrompt renders the model prompt. Retrieved memories come before
// the live transcript and the latest utterance is always last, followed by
// the persona's speaker cue.
func AssemblePrompt(in PromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "ONLY generate plain sentences without prefix of who is speaking. DO NOT use %s: prefix.\n\n", in.PersonaName)

	b.WriteString(in.Instructions)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Below are relevant details about %s's past:\n", in.PersonaName)
	for _, m := range in.Memories {
		b.WriteString(strings.TrimSpace(m))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("Below is the conversation you are in:\n")
	if history := strings.TrimSpace(in.History); len(history) > 0 {
		b.WriteString(history)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "User: %s\n%s:", in.Utterance, in.PersonaName)

	return b.String()
}
