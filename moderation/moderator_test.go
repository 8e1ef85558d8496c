package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// TestModerator_Censor
// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	dictionary := []string{"badger", "snake", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
		},
		{
			name:     "Multiple occurrences and preserved spacing",
			input:    "badger badger badger",
			expected: "****** ****** ******",
		},
		{
			name:     "Leet speak folding",
			input:    "watch the b4dg3r go",
			expected: "watch the ****** go",
		},
		{
			name:     "Internal punctuation",
			input:    "Look at the B.A.D.G.E.R now",
			expected: "Look at the *********** now",
		},
		{
			name:     "Uppercase and extreme noise",
			input:    "S-N-A-K-E is around",
			expected: "********* is around",
		},
		{
			name:     "Accents elsewhere keep unrelated text intact",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
		},
		{
			name:     "Nothing to censor",
			input:    "a perfectly polite sentence",
			expected: "a perfectly polite sentence",
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, mod.Censor(tt.input))
		})
	}
}

func TestModerator_Censor_Multiple_Words_In_One_Message(t *testing.T) {
	req := require.New(t)
	mod, err := NewModerator([]string{"badger", "mushroom"}, replacementChar)
	req.NoError(err)

	censored := mod.Censor("a badger near a mushroom")
	req.Equal("a ****** near a ********", censored)
}
