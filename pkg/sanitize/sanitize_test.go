package sanitize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextStripsMarkup(t *testing.T) {
	require.Equal(t, "Urgent need", Text("  <b>Urgent</b> need "))
	require.Equal(t, "A & B", Text("A & B"))
	require.Equal(t, "", Text("   "))
}

func TestOptionalText(t *testing.T) {
	require.Nil(t, OptionalText(nil))

	blank := " <i></i> "
	require.Nil(t, OptionalText(&blank))

	value := "<p>bring id</p>"
	out := OptionalText(&value)
	require.NotNil(t, out)
	require.Equal(t, "bring id", *out)
}
