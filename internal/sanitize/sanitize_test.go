package sanitize

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInput(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"empty", "", 500, ""},
		{"blank", "  \t\n ", 500, ""},
		{"trim", "  hola  ", 500, "hola"},
		{"controls", "ho\x00la\x1b\u0085!", 500, "hola!"},
		{"newlines removed", "cuanto\ncuesta", 500, "cuantocuesta"},
		{"truncate runes", "ñandú", 3, "ñan"},
		{"nfc", "decoloracio\u0301n", 500, "decoloraci\u00f3n"},
		{"default max", strings.Repeat("a", 600), 0, strings.Repeat("a", DefaultMaxLength)},
		{"invalid utf8", "ok\xffok", 500, "okok"},
		{"zero width and bom", "\ufeffho\u200bla\u2060", 500, "hola"},
		{"format runes do not use the budget", "\u200b\u200b\u200bhola", 4, "hola"},
		{"emoji joiner kept", "\U0001F469\u200d\U0001F9B0", 500, "\U0001F469\u200d\U0001F9B0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Input(tc.in, tc.max))
		})
	}
}

func TestInput_Bounds(t *testing.T) {
	inputs := []string{
		strings.Repeat("x\x07", 400),
		strings.Repeat("é", 1000),
		"\u200b" + strings.Repeat(" y ", 300),
		string([]byte{0xe2, 0x82}) + "tail",
	}
	for _, in := range inputs {
		for _, max := range []int{1, 10, 500} {
			out := Input(in, max)
			require.LessOrEqual(t, utf8.RuneCountInString(out), max)
			require.True(t, utf8.ValidString(out))
			for _, r := range out {
				require.False(t, unicode.IsControl(r), "control rune %U in %q", r, out)
				require.False(t, r == '\u200b' || r == '\ufeff', "format rune %U in %q", r, out)
			}
		}
	}
}
