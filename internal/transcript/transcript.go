// Package transcript holds the ordered turn log of one page session.
package transcript

import (
	"errors"
	"strings"

	"chat-widget/internal/domain"
)

// Transcript is an append-only, ordered list of turns. The first turn is
// always the system instruction. A Transcript is owned by a single
// controller and is not safe for concurrent mutation.
type Transcript struct {
	turns []domain.Turn
}

// New creates a transcript seeded with the system instruction and the
// assistant greeting.
func New(systemInstruction, greeting string) *Transcript {
	return &Transcript{
		turns: []domain.Turn{
			domain.SystemTurn(systemInstruction),
			domain.AssistantTurn(greeting),
		},
	}
}

// Restore rebuilds a transcript from previously stored turns.
func Restore(turns []domain.Turn) (*Transcript, error) {
	if len(turns) == 0 {
		return nil, errors.New("transcript: no turns to restore")
	}
	if turns[0].Role != domain.RoleSystem {
		return nil, errors.New("transcript: first turn must be the system instruction")
	}
	t := &Transcript{turns: make([]domain.Turn, 0, len(turns))}
	for _, turn := range turns {
		t.Append(turn)
	}
	return t, nil
}

// Append adds turn to the end. Turns with an unknown role, and user or
// assistant turns without content, are dropped.
func (t *Transcript) Append(turn domain.Turn) {
	if !turn.Role.Valid() {
		return
	}
	if turn.Role != domain.RoleSystem && strings.TrimSpace(turn.Content) == "" {
		return
	}
	t.turns = append(t.turns, turn)
}

// Snapshot returns a copy of every turn in insertion order.
func (t *Transcript) Snapshot() []domain.Turn {
	out := make([]domain.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

func (t *Transcript) Len() int {
	return len(t.turns)
}

// Since returns a copy of the turns appended at or after index i.
func (t *Transcript) Since(i int) []domain.Turn {
	if i < 0 {
		i = 0
	}
	if i >= len(t.turns) {
		return nil
	}
	out := make([]domain.Turn, len(t.turns)-i)
	copy(out, t.turns[i:])
	return out
}
