package rustle

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// quotePairs maps opening quote characters to their closing counterparts,
// covering ASCII and the typographic variants models like to emit.
var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'`':  '`',
	'“': '”', // “ ”
	'‘': '’', // ‘ ’
	'«': '»', // « »
	'„': '“', // „ “
}

const quoteChars = "\"'`“”‘’«»„"

// translationPrefixes are "Translation:"-style labels in the languages the
// service commonly targets, matched case-insensitively at the start of the
// string.
var translationPrefixes = []string{
	"translation:",
	"translated text:",
	"translated:",
	"traducción:",
	"traduccion:",
	"traduction:",
	"übersetzung:",
	"ubersetzung:",
	"tradução:",
	"traducao:",
	"traduzione:",
	"перевод:",
	"翻译：",
	"翻訳：",
	"번역:",
}

// aiPreambles are full lead-in sentences some models prepend despite
// instructions. Each is matched case-insensitively at the start of the string
// up to and including the following colon.
var aiPreambles = []string{
	"here is the translation",
	"here's the translation",
	"here is your translation",
	"the translation is",
	"sure, here is the translation",
	"aquí está la traducción",
	"aqui está a tradução",
	"voici la traduction",
	"hier ist die übersetzung",
	"ecco la traduzione",
}

var markdownWrappers = []string{"***", "**", "__", "```", "`", "*", "_"}

var whitespaceRE = regexp.MustCompile(`\s+`)

// Clean normalizes raw translation output from the API or a model: strips
// wrapping quotes, label prefixes, AI preambles, markdown wrappers, and JSON
// envelopes, then collapses whitespace. Every pass is idempotent, so
// Clean(Clean(s)) == Clean(s).
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = stripMatchedQuotes(s)
	s = stripUnmatchedEdgeQuotes(s)
	s = stripPrefixes(s)
	s = stripPreambles(s)
	s = stripMarkdown(s)
	s = unwrapJSON(s)
	s = whitespaceRE.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return finalQuoteStrip(s)
}

// CleanBatch applies Clean to every value of a translation map.
func CleanBatch(translations map[string]string) map[string]string {
	out := make(map[string]string, len(translations))
	for k, v := range translations {
		out[k] = Clean(v)
	}
	return out
}

// stripMatchedQuotes repeatedly removes an outer matching quote pair, as long
// as the enclosed content does not itself use that quote character.
func stripMatchedQuotes(s string) string {
	for {
		runes := []rune(s)
		if len(runes) < 2 {
			return s
		}
		closer, ok := quotePairs[runes[0]]
		if !ok || runes[len(runes)-1] != closer {
			return s
		}
		inner := string(runes[1 : len(runes)-1])
		if strings.ContainsRune(inner, runes[0]) || strings.ContainsRune(inner, closer) {
			return s
		}
		s = strings.TrimSpace(inner)
	}
}

// stripUnmatchedEdgeQuotes removes a leading or trailing quote-like character
// that has no counterpart elsewhere in the string.
func stripUnmatchedEdgeQuotes(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	if first := runes[0]; strings.ContainsRune(quoteChars, first) {
		closer, ok := quotePairs[first]
		rest := string(runes[1:])
		if !ok || (!strings.ContainsRune(rest, closer) && !strings.ContainsRune(rest, first)) {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		if last := runes[len(runes)-1]; strings.ContainsRune(quoteChars, last) {
			rest := string(runes[:len(runes)-1])
			if !strings.ContainsRune(rest, last) && !containsOpenerFor(rest, last) {
				runes = runes[:len(runes)-1]
			}
		}
	}
	return strings.TrimSpace(string(runes))
}

func containsOpenerFor(s string, closer rune) bool {
	for open, cl := range quotePairs {
		if cl == closer && strings.ContainsRune(s, open) {
			return true
		}
	}
	return false
}

func stripPrefixes(s string) string {
	for {
		stripped := false
		lower := strings.ToLower(s)
		for _, p := range translationPrefixes {
			if strings.HasPrefix(lower, p) {
				s = strings.TrimSpace(s[len(p):])
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

func stripPreambles(s string) string {
	lower := strings.ToLower(s)
	for _, p := range aiPreambles {
		if !strings.HasPrefix(lower, p) {
			continue
		}
		rest := s[len(p):]
		// Drop everything through the first colon after the preamble, or the
		// preamble alone when no colon follows.
		if i := strings.IndexAny(rest, ":："); i >= 0 && i < 20 {
			_, size := decodeColon(rest[i:])
			return strings.TrimSpace(rest[i+size:])
		}
		return strings.TrimSpace(rest)
	}
	return s
}

func decodeColon(s string) (rune, int) {
	if strings.HasPrefix(s, "：") {
		return '：', len("：")
	}
	return ':', 1
}

// stripMarkdown removes a markdown wrapper only when it encloses the whole
// string.
func stripMarkdown(s string) string {
	for {
		stripped := false
		for _, w := range markdownWrappers {
			if len(s) > 2*len(w) && strings.HasPrefix(s, w) && strings.HasSuffix(s, w) {
				inner := s[len(w) : len(s)-len(w)]
				// Not a wrapper if the marker also appears inside.
				if !strings.Contains(inner, w) {
					s = strings.TrimSpace(inner)
					stripped = true
					break
				}
			}
		}
		if !stripped {
			return s
		}
	}
}

// unwrapJSON extracts the value from a {"text": "..."} or
// {"translation": "..."} shaped string.
func unwrapJSON(s string) string {
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return s
	}
	var obj struct {
		Text        string `json:"text"`
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return s
	}
	if obj.Translation != "" {
		return obj.Translation
	}
	if obj.Text != "" {
		return obj.Text
	}
	return s
}

// finalQuoteStrip removes one outer quote pair, but only when the enclosed
// content does not itself contain that quote character. This prevents
// over-stripping legitimately quoted content like `"a" or "b"`.
func finalQuoteStrip(s string) string {
	runes := []rune(s)
	if len(runes) < 2 {
		return s
	}
	closer, ok := quotePairs[runes[0]]
	if !ok || runes[len(runes)-1] != closer {
		return s
	}
	inner := string(runes[1 : len(runes)-1])
	if strings.ContainsRune(inner, runes[0]) || strings.ContainsRune(inner, closer) {
		return s
	}
	return strings.TrimSpace(inner)
}

var dangerousTags = []string{"script", "iframe", "object", "embed"}

// SanitizeHTML strips script-capable tags, inline event handlers, and
// javascript:/non-image data: URLs from an HTML fragment. Defense in depth
// before cleaned text is ever injected as raw HTML. Plain text without markup
// passes through untouched.
func SanitizeHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<>") {
		return fragment
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	doc.Find(strings.Join(dangerousTags, ",")).Remove()

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			kept := node.Attr[:0]
			for _, attr := range node.Attr {
				if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
					continue
				}
				val := strings.TrimSpace(strings.ToLower(attr.Val))
				if strings.HasPrefix(val, "javascript:") {
					continue
				}
				if strings.HasPrefix(val, "data:") && !strings.HasPrefix(val, "data:image/") {
					continue
				}
				kept = append(kept, attr)
			}
			node.Attr = kept
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return fragment
	}
	return out
}
