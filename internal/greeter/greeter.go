// Package greeter welcomes members who join a conversation.
package greeter

import "strings"

// WelcomeMessage is sent once to each member joining a conversation.
const WelcomeMessage = "Welcome to the Dental Office Virtual Assistant service. You can ask me questions about availability and scheduling visits."

// Greeting is one welcome addressed to a member.
type Greeting struct {
	MemberID string
	Text     string
}

// Greet returns one welcome per member other than the bot itself, in input
// order. It keeps no state, so a member announced twice is greeted twice.
func Greet(memberIDs []string, recipientID string) []Greeting {
	out := make([]Greeting, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == recipientID || strings.TrimSpace(id) == "" {
			continue
		}
		out = append(out, Greeting{MemberID: id, Text: WelcomeMessage})
	}
	return out
}
