package prompt_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"discord-marketing/pipeline/prompt"
)

func TestInterpolateScalarsAndContainers(t *testing.T) {
	tpl := "Hello {{NAME}}, you have {{COUNT}} items: {{ITEMS}}."
	out, err := prompt.Interpolate(tpl, map[string]any{
		"NAME":  "alice",
		"COUNT": 3,
		"ITEMS": []string{"a", "b"},
	})
	require.NoError(t, err)
	require.Equal(t, `Hello alice, you have 3 items: ["a","b"].`, out)
}

func TestInterpolateLeavesUnresolvedVerbatim(t *testing.T) {
	tpl := "Known {{A}}, unknown {{B}}."
	out, err := prompt.Interpolate(tpl, map[string]any{"A": "x"})
	require.NoError(t, err)
	require.Equal(t, "Known x, unknown {{B}}.", out)
}
