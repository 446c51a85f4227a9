package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool("Yes"))
	assert.True(t, ParseBool("yes, it is a business question"))
	assert.True(t, ParseBool("  YES  "))
	assert.False(t, ParseBool("No"))
	assert.False(t, ParseBool(""))
	assert.False(t, ParseBool("maybe"))
}

func TestParseQuestionList(t *testing.T) {
	questions := ParseQuestionList(`["What were Q1 sales?", "Who is the top customer?"]`)
	require.Len(t, questions, 2)
	assert.Equal(t, "What were Q1 sales?", questions[0])
}

func TestParseQuestionListFenced(t *testing.T) {
	content := "```json\n[\"How many leads converted?\"]\n```"
	questions := ParseQuestionList(content)
	require.Len(t, questions, 1)
	assert.Equal(t, "How many leads converted?", questions[0])
}

func TestParseQuestionListMalformed(t *testing.T) {
	assert.Empty(t, ParseQuestionList("I cannot produce a list right now"))
	assert.Empty(t, ParseQuestionList("[not json"))
	assert.Empty(t, ParseQuestionList(""))
}

func TestParseQuestionListDropsNonStrings(t *testing.T) {
	questions := ParseQuestionList(`["valid", 42, null, "also valid"]`)
	require.Len(t, questions, 2)
	assert.Equal(t, []string{"valid", "also valid"}, questions)
}

func TestParseChoicesList(t *testing.T) {
	names, ok := ParseChoices(`{"choice": ["sales_db", "customer_db"]}`)
	require.True(t, ok)
	assert.Equal(t, []string{"sales_db", "customer_db"}, names)
}

func TestParseChoicesSingleString(t *testing.T) {
	names, ok := ParseChoices(`{"choice": "sales_db"}`)
	require.True(t, ok)
	assert.Equal(t, []string{"sales_db"}, names)
}

func TestParseChoicesNameKey(t *testing.T) {
	names, ok := ParseChoices(`{"name": ["create_ticket"]}`)
	require.True(t, ok)
	assert.Equal(t, []string{"create_ticket"}, names)
}

func TestParseChoicesNA(t *testing.T) {
	_, ok := ParseChoices("NA")
	assert.False(t, ok)

	_, ok = ParseChoices(`{"choice": "NA"}`)
	assert.False(t, ok)

	_, ok = ParseChoices("")
	assert.False(t, ok)

	_, ok = ParseChoices("no usable json here")
	assert.False(t, ok)
}

func TestParseStringMap(t *testing.T) {
	m, err := ParseStringMap(`{"title": "Fix login bug", "priority": 2, "urgent": true, "note": null}`)
	require.NoError(t, err)
	assert.Equal(t, "Fix login bug", m["title"])
	assert.Equal(t, "2", m["priority"])
	assert.Equal(t, "true", m["urgent"])
	assert.Equal(t, "", m["note"])
}

func TestParseStringMapDropsNested(t *testing.T) {
	m, err := ParseStringMap(`{"title": "x", "meta": {"a": 1}}`)
	require.NoError(t, err)
	assert.Equal(t, "x", m["title"])
	_, exists := m["meta"]
	assert.False(t, exists)
}

func TestParseStringMapNoObject(t *testing.T) {
	_, err := ParseStringMap("nothing structured")
	require.Error(t, err)
}

func TestParseActionItems(t *testing.T) {
	items, err := ParseActionItems(`[{"summary": "Call vendor", "description": "Follow up on pricing"}, {"summary": "", "description": "dropped"}]`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Call vendor", items[0].Summary)
}

func TestParseActionItemsMalformed(t *testing.T) {
	_, err := ParseActionItems("no array")
	require.Error(t, err)
}
