package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathSegment(t *testing.T) {
	require.NoError(t, ValidatePathSegment("billing_plan"))
	require.NoError(t, ValidatePathSegment("_private"))
	// JSON keys are not SQL identifiers; "order" is a fine document key.
	require.NoError(t, ValidatePathSegment("order"))

	assert.Error(t, ValidatePathSegment(""))
	assert.Error(t, ValidatePathSegment("CamelCase"))
	assert.Error(t, ValidatePathSegment("1starts_with_digit"))
	assert.Error(t, ValidatePathSegment("bad'key"))
	assert.Error(t, ValidatePathSegment("spaced key"))
	assert.Error(t, ValidatePathSegment("a; drop table core_entities"))
	assert.Error(t, ValidatePathSegment(strings.Repeat("x", 64)))
}

func TestEscapeLikePattern(t *testing.T) {
	assert.Equal(t, `100\%`, EscapeLikePattern(`100%`))
	assert.Equal(t, `a\_b`, EscapeLikePattern(`a_b`))
	assert.Equal(t, `back\\slash`, EscapeLikePattern(`back\slash`))
}
