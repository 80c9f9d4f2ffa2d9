package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOptions(t *testing.T) {
	options := NewOptions(WithModel("m"))

	assert.Equal(t, 2048, options.MaxTokens)
	assert.Equal(t, 0.7, options.Temperature)
	assert.Equal(t, 1.1, options.RepetitionPenalty)
	assert.Equal(t, "hi", options.FullPrompt("hi"))

	prefixed := NewOptions(WithPromptPrefix("be brief"))
	assert.Equal(t, "be brief\nhi", prefixed.FullPrompt("hi"))
}
