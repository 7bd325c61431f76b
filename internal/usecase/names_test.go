package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "My name is Alex, what shampoo should I use?", want: "Alex", ok: true},
		{in: "my name is Alex", want: "Alex", ok: true},
		{in: "MY NAME IS Alex", want: "Alex", ok: true},
		{in: "Hi, I'm Priya and my hair is dry", want: "Priya", ok: true},
		{in: "I’m Zoë", want: "Zoë", ok: true},
		{in: "i am Jordan", want: "Jordan", ok: true},
		{in: "Hello there. I am O'Neil.", want: "O'Neil", ok: true},
		// X must be capitalized.
		{in: "I'm looking for a conditioner", ok: false},
		{in: "my name is alex", ok: false},
		// Lead-in must start a word.
		{in: "Miami Beach humidity", ok: false},
		{in: "Hello", ok: false},
		// Accepted false positive.
		{in: "I am Tired of frizz", want: "Tired", ok: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := extractName(tc.in)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNameInstruction(t *testing.T) {
	require.Equal(t, "User's name is Alex.", nameInstruction("Alex"))
}
