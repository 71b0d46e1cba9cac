package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-server/internal/apperrors"
	"agent-server/internal/domain/model"
)

func TestCountDeterministicAndMonotonic(t *testing.T) {
	c := NewCounter()

	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, c.Count("hello world"), c.Count("hello world"))

	prev := 0
	text := ""
	for i := 0; i < 50; i++ {
		text += "word "
		count := c.Count(text)
		require.GreaterOrEqual(t, count, prev, "count must not shrink as input grows")
		prev = count
	}
}

func TestCountWhitespaceFreeInput(t *testing.T) {
	c := NewCounter()

	// A single long "word" should still count by length.
	count := c.Count(strings.Repeat("a", 400))
	assert.Greater(t, count, 50)
}

func TestCountMessagesMultiPart(t *testing.T) {
	c := NewCounter()

	messages := []model.Message{
		{Role: model.RoleUser, Content: "plain text body"},
		{Role: model.RoleUser, Parts: []model.ContentPart{
			{Type: "text", Text: "caption for the image"},
			{Type: "image_url", ImageURL: "data:image/jpeg;base64,xxxx"},
		}},
	}

	want := c.Count("plain text body") + c.Count("caption for the image")
	assert.Equal(t, want, c.CountMessages(messages))
}

func TestValidateBudgetBoundary(t *testing.T) {
	c := NewCounter()
	messages := []model.Message{{Role: model.RoleUser, Content: "one two three four five"}}
	counted := c.CountMessages(messages)

	atLimit := model.Profile{Name: "m", MaxContextTokens: counted}
	assert.NoError(t, c.ValidateBudget(messages, atLimit), "counted == limit must be accepted")

	over := model.Profile{Name: "m", MaxContextTokens: counted - 1}
	err := c.ValidateBudget(messages, over)
	require.Error(t, err)

	var limitErr *apperrors.TokenLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, counted, limitErr.Counted)
	assert.Equal(t, counted-1, limitErr.Limit)
}
