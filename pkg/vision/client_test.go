package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict_WellFormed(t *testing.T) {
	t.Parallel()

	v := ParseVerdict("Match Probability: 85%\nRationale: Same white chest patch and ear shape.")

	assert.True(t, v.Available)
	assert.Equal(t, 85, v.Probability)
	assert.Equal(t, "Same white chest patch and ear shape.", v.Rationale)
}

func TestParseVerdict_SurroundingChatter(t *testing.T) {
	t.Parallel()

	text := `Looking at both photos carefully.

Match Probability: 40%
The coats differ in color and the second dog looks larger.`

	v := ParseVerdict(text)

	assert.True(t, v.Available)
	assert.Equal(t, 40, v.Probability)
	assert.Equal(t, "The coats differ in color and the second dog looks larger.", v.Rationale)
}

func TestParseVerdict_CaseAndSpacing(t *testing.T) {
	t.Parallel()

	v := ParseVerdict("match probability:  100 %\nRationale: Identical markings.")

	assert.True(t, v.Available)
	assert.Equal(t, 100, v.Probability)
}

func TestParseVerdict_MissingRationale(t *testing.T) {
	t.Parallel()

	v := ParseVerdict("Match Probability: 12%")

	assert.True(t, v.Available)
	assert.Equal(t, 12, v.Probability)
	assert.Empty(t, v.Rationale)
}

func TestParseVerdict_Unparseable(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"",
		"I cannot compare these images.",
		"Probability: high",
		"Match Probability: 150%", // out of range
	} {
		v := ParseVerdict(text)
		assert.False(t, v.Available, "input %q", text)
		assert.Zero(t, v.Probability)
	}
}

func TestNewClient_DefaultModel(t *testing.T) {
	t.Parallel()

	c := NewClient("test-key", "")
	sc := c.(*sdkClient)
	assert.Equal(t, defaultModel, sc.model)

	c = NewClient("test-key", "claude-haiku-4-5-20251001")
	sc = c.(*sdkClient)
	assert.Equal(t, "claude-haiku-4-5-20251001", sc.model)
}
