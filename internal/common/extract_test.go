package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSectionPullsLabeledText(t *testing.T) {
	content := "Here is the answer.\n\nSuggestions:\nFocus on renewal risk.\n\nNext steps:\n- call the champion"
	assert.Equal(t, "Focus on renewal risk.", ExtractSection(content, "Suggestions"))
}

func TestExtractSectionMissingReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractSection("no labeled sections here", "Suggestions"))
}

func TestExtractListItemsParsesBulletsAndNumbers(t *testing.T) {
	content := "Next steps:\n- call the champion\n- send the proposal\n2. follow up in a week"
	items := ExtractListItems(content, "Next steps")
	assert.ElementsMatch(t, []string{"call the champion", "send the proposal", "follow up in a week"}, items)
}

func TestExtractListItemsDeduplicates(t *testing.T) {
	content := "Suggestions:\n- ask for budget\n- ask for budget"
	assert.Equal(t, []string{"ask for budget"}, ExtractListItems(content, "Suggestions"))
}

func TestExtractListItemsMissingSectionReturnsNil(t *testing.T) {
	assert.Nil(t, ExtractListItems("nothing relevant", "Suggestions"))
}
