package usecase

import (
	"fmt"
	"strings"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 600
)

// DefaultSystemInstruction is the fixed behavioural instruction placed at
// index 0 of every transcript.
func DefaultSystemInstruction() string {
	return strings.Join([]string{
		"Role:",
		"You are a friendly hair-care assistant embedded in a website chat widget.",
		"",
		"Behavior Rules:",
		behaviorRules(),
	}, "\n")
}

// DefaultGreeting is the first assistant turn shown to the user.
const DefaultGreeting = "Hi! I'm your hair-care assistant. Tell me about your hair and I'll suggest products and routines."

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer the user's latest message using the whole conversation for context.",
		"2) Keep responses warm, practical and concise.",
		"3) If the user's name is known, address them by name occasionally.",
		"4) If you are unsure, say so instead of guessing.",
	}, "\n")
}

func nameInstruction(name string) string {
	return fmt.Sprintf("User's name is %s.", name)
}

// failureMessage is the assistant-visible text for a failed turn.
func failureMessage(e *Error, status int, body string) string {
	switch e.Code {
	case ErrorMissingCredential:
		return "Error: no API key is configured, so I can't reach the assistant service. Please add an API key and try again."
	case ErrorNonSuccessStatus:
		body = strings.TrimSpace(body)
		if body == "" {
			body = "no response body"
		}
		return fmt.Sprintf("Error: the assistant service responded with status %d: %s", status, body)
	case ErrorMalformedResponse:
		return "Error: the assistant service returned a response without any reply text."
	default:
		return "Error: could not reach the assistant service. Please check your connection and try again."
	}
}
