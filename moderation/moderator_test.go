package moderation

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"duochat/errors"
)

const replacementChar = '*'

// The dictionary uses specific words to avoid partial collisions
// (e.g., "he" inside "The").
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
			name:     "Leet speak substitution",
			input:    "a sneaky b4dg3r appears",
			expected: "a sneaky ****** appears",
		},
		{
			name:     "Uppercase and internal punctuation",
			input:    "S-N-A-K-E is here",
			expected: "********* is here",
		},
		{
			name:     "Clean message untouched",
			input:    "hello there, general",
			expected: "hello there, general",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, mod.Censor(tt.input))
		})
	}
}

func TestLoadWords(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"censored/en.txt": {Data: []byte("badger\nsnake\n\nbadger\n")},
		"censored/fr.txt": {Data: []byte("blaireau\r\nserpent\r\n")},
	}

	list, err := LoadWords(fsys, "censored")
	req.NoError(err)
	req.ElementsMatch([]string{"en", "fr"}, list.Languages)
	// Duplicates collapse into a unique set
	req.ElementsMatch([]string{"badger", "snake", "blaireau", "serpent"}, list.Words)
}

func TestLoadWords_Empty(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"censored/en.txt": {Data: []byte("\n\n")},
	}

	_, err := LoadWords(fsys, "censored")
	req.ErrorIs(err, errors.ErrEmptyWords)
}

func BenchmarkCensor(b *testing.B) {
	mod, _ := NewModerator([]string{"badger", "snake", "mushroom"}, replacementChar)
	msg := "The b4dg3r and the $nake met a mushroom in the woods"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mod.Censor(msg)
	}
}
