package transfer

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FormatBytes renders a size the way the rest of the system logs them:
// decimal units with KB as the smallest (1 KB = 1000 B), a comma as decimal
// separator, and no trailing zero fraction. Non-positive sizes render as "0".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0"
	}

	val := float64(n)
	var unit string
	var prec int
	switch {
	case n < 1000*1000:
		val /= 1000
		unit, prec = "KB", 1
	case n < 1000*1000*1000:
		val /= 1000 * 1000
		unit, prec = "MB", 1
	case n < 1000*1000*1000*1000:
		val /= 1000 * 1000 * 1000
		unit, prec = "GB", 2
	default:
		val /= 1000 * 1000 * 1000 * 1000
		unit, prec = "TB", 3
	}

	s := strconv.FormatFloat(val, 'f', prec, 64)
	s = strings.ReplaceAll(s, ".", ",")
	// Drop an all-zero fraction so whole values read "2 MB", not "2,0 MB".
	if i := strings.IndexByte(s, ','); i >= 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}
	return s + " " + unit
}

// asciiFold maps letters that NFD decomposition leaves untouched.
var asciiFold = map[rune]string{
	'æ': "ae", 'Æ': "AE",
	'ø': "o", 'Ø': "O",
	'ß': "ss",
	'þ': "th", 'Þ': "TH",
	'đ': "d", 'Đ': "D",
	'ð': "d", 'Ð': "D",
	'ł': "l", 'Ł': "L",
	'ª': "a", 'º': "o",
}

// SanitizeFilename reduces a course name to a safe artifact file name:
// accents are stripped to their base letters and anything outside
// [A-Za-z0-9._- ] is removed.
func SanitizeFilename(name string) string {
	// NFD splits accented letters into base letter plus combining marks,
	// which are then dropped.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if repl, ok := asciiFold[r]; ok {
			b.WriteString(repl)
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		}
	}
	return b.String()
}
