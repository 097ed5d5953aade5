package render

import (
	"regexp"
	"strings"
)

var (
	reCodeFence  = regexp.MustCompile("(?s)```.*?```")
	reImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reURL        = regexp.MustCompile(`https?://\S+|www\.\S+`)
	reTag        = regexp.MustCompile(`<[^<>]{0,200}>`)
	reHeader     = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s*`)
	reQuote      = regexp.MustCompile(`(?m)^\s*>\s?`)
	reBullet     = regexp.MustCompile(`(?m)^\s*(?:[-*+•]|\d+[.)])\s+`)
	reRule       = regexp.MustCompile(`(?m)^\s*(?:[-*_]\s*){3,}$`)
	reEmphasis   = regexp.MustCompile(`(\*{1,3}|_{2,3}|~~)([^*_~\n]+?)(\*{1,3}|_{2,3}|~~)`)
	reStrayMark  = regexp.MustCompile("[*_`~|^\\\\]+")
	reDollar     = regexp.MustCompile(`\$(\d[\d,]*(?:\.\d+)?)`)
	reHashNumber = regexp.MustCompile(`#(\d+)`)
	rePercent    = regexp.MustCompile(`(\d)\s*%`)
	reSpace      = regexp.MustCompile(`\s+`)
	reSpacePunct = regexp.MustCompile(`\s+([,.!?;:])`)
)

// abbreviations are expanded case-insensitively on word boundaries.
var abbreviations = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`(?i)\be\.g\.,?`), "for example,"},
	{regexp.MustCompile(`(?i)\bi\.e\.,?`), "that is,"},
	{regexp.MustCompile(`(?i)\betc\.`), "et cetera."},
	{regexp.MustCompile(`(?i)\bvs\.?(\s)`), "versus$1"},
	{regexp.MustCompile(`(?i)\bapprox\.`), "approximately"},
	{regexp.MustCompile(`\bDr\.`), "Doctor"},
	{regexp.MustCompile(`\bMr\.`), "Mister"},
	{regexp.MustCompile(`\bMrs\.`), "Missus"},
	{regexp.MustCompile(`\bSt\.(\s+[A-Z])`), "Saint$1"},
}

// symbols maps characters a speech engine reads badly to spoken words.
var symbols = strings.NewReplacer(
	"&", " and ",
	"%", " percent",
	"@", " at ",
	"+", " plus ",
	"=", " equals ",
	"#", " ",
	"°", " degrees",
	"€", " euros",
	"£", " pounds",
	"→", " to ",
	"…", "...",
	"“", "",
	"”", "",
	"\"", "",
	"[", "",
	"]", "",
	"{", "",
	"}", "",
)

// Speakable rewrites model output into plain text a speech engine can read
// naturally. It strips markdown and markup and spells out symbols and
// common abbreviations.
func Speakable(raw string) string {
	s := reCodeFence.ReplaceAllString(raw, " ")
	s = reImage.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reURL.ReplaceAllString(s, "a link")
	s = reTag.ReplaceAllString(s, " ")
	s = reRule.ReplaceAllString(s, " ")
	s = reHeader.ReplaceAllString(s, "")
	s = reQuote.ReplaceAllString(s, "")
	s = reBullet.ReplaceAllString(s, "")
	for range 2 {
		s = reEmphasis.ReplaceAllString(s, "$2")
	}
	s = reStrayMark.ReplaceAllString(s, "")

	for _, a := range abbreviations {
		s = a.re.ReplaceAllString(s, a.with)
	}
	s = reDollar.ReplaceAllStringFunc(s, func(m string) string {
		n := m[1:]
		trail := ""
		if strings.HasSuffix(n, ",") {
			n, trail = strings.TrimRight(n, ","), ","
		}
		n = strings.ReplaceAll(n, ",", "")
		if n == "1" {
			return "1 dollar" + trail
		}
		return n + " dollars" + trail
	})
	s = reHashNumber.ReplaceAllString(s, "number $1")
	s = rePercent.ReplaceAllString(s, "$1%")
	s = symbols.Replace(s)

	s = reSpace.ReplaceAllString(s, " ")
	s = reSpacePunct.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, ",,", ",")
	return strings.TrimSpace(s)
}

// Ellipsis marks text cut short by [LimitWords].
const Ellipsis = "..."

// LimitWords keeps at most max words. Longer text is cut and ends with
// [Ellipsis]. max <= 0 disables the limit.
func LimitWords(text string, max int) string {
	words := strings.Fields(text)
	if max <= 0 || len(words) <= max {
		return strings.Join(words, " ")
	}
	cut := strings.Join(words[:max], " ")
	cut = strings.TrimRight(cut, ",;:-.!?")
	return cut + Ellipsis
}
