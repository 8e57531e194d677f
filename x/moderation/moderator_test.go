package moderation

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/meowerlab/meower/x/util"
)

func TestModeratorClean(t *testing.T) {
	mod, err := NewModerator([]string{"badger", "snake", "mushroom"}, '*')
	if !assert.NoError(t, err) {
		return
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple word", "The badger is here", "The ****** is here"},
		{"repeated", "badger badger badger", "****** ****** ******"},
		{"case insensitive", "SNAKE and Snake", "***** and *****"},
		{"leet speak", "a b4dg3r appears", "a ****** appears"},
		{"trailing punctuation", "I love badger!", "I love ******!"},
		{"inside a longer word", "badgers and snakeskin", "badgers and snakeskin"},
		{"accents are untouched", "Un été avec un badger", "Un été avec un ******"},
		{"nothing to censor", "Meower is amazing", "Meower is amazing"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mod.Clean(tt.input))
		})
	}
}

func TestModeratorCleanKeepsLength(t *testing.T) {
	mod, err := NewDefaultModerator(nil, 0)
	if !assert.NoError(t, err) {
		return
	}

	input := "what the shit is this crap"
	cleaned := mod.Clean(input)
	assert.NotContains(t, cleaned, "shit")
	assert.NotContains(t, cleaned, "crap")
	assert.Equal(t, utf8.RuneCountInString(input), utf8.RuneCountInString(cleaned))
	assert.Equal(t, "what the **** is this ****", cleaned)
}

func TestModeratorDeterministic(t *testing.T) {
	mod, err := NewDefaultModerator([]string{"meowmeow"}, '#')
	if !assert.NoError(t, err) {
		return
	}

	first := mod.Clean("meowmeow says hello")
	second := mod.Clean("meowmeow says hello")
	assert.Equal(t, first, second)
	assert.Equal(t, "######## says hello", first)
}

func TestModeratorClassicFalsePositives(t *testing.T) {
	mod, err := NewDefaultModerator(nil, 0)
	if !assert.NoError(t, err) {
		return
	}

	for _, input := range []string{"classic assessment", "hello shell", "Scunthorpe"} {
		assert.Equal(t, input, mod.Clean(input))
	}
}

func TestNewModeratorEmptyDictionary(t *testing.T) {
	_, err := NewModerator([]string{"", "   "}, '*')
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	config := util.DefaultConfig()
	config.Moderation.Placeholder = "-"
	config.Moderation.ExtraWords = []string{"Dogs"}

	mod, err := NewFromConfig(config)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "cats beat ----", mod.Clean("cats beat dogs"))
	assert.Equal(t, "----", mod.Clean("damn"))
}
