package dtmf

import "strings"

// Tone is one canonical DTMF symbol: '0'..'9', '*' or '#'.
type Tone byte

const (
	// ToneStar clears the challenge input buffer.
	ToneStar Tone = '*'
	// TonePound submits the accumulated input for validation.
	TonePound Tone = '#'
)

// IsDigit reports whether the tone is a numeric keypad digit.
func (t Tone) IsDigit() bool {
	return t >= '0' && t <= '9'
}

func (t Tone) String() string {
	return string(rune(t))
}

// Providers deliver tones either as raw symbols or as spelled-out words.
var toneWords = map[string]Tone{
	"zero":     '0',
	"one":      '1',
	"two":      '2',
	"three":    '3',
	"four":     '4',
	"five":     '5',
	"six":      '6',
	"seven":    '7',
	"eight":    '8',
	"nine":     '9',
	"star":     ToneStar,
	"asterisk": ToneStar,
	"pound":    TonePound,
	"hash":     TonePound,
}

// NormalizeTone maps a provider token onto the canonical alphabet. The
// second return is false for unrecognized tokens, which callers must treat
// as a no-op rather than an error.
func NormalizeTone(token string) (Tone, bool) {
	token = strings.ToLower(strings.TrimSpace(token))

	if tone, ok := toneWords[token]; ok {
		return tone, true
	}

	if len(token) == 1 {
		c := token[0]
		if c >= '0' && c <= '9' || c == '*' || c == '#' {
			return Tone(c), true
		}
	}

	return 0, false
}
