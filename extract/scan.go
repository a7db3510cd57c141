package extract

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rustledotdev/rustle"
)

// Fragment is one translatable text candidate found in a source file.
type Fragment struct {
	Text  string
	File  string
	Start int // byte offset of the match, 0 for DOM-extracted fragments
	End   int
	Tags  []string // enclosing tag names, capped, for disambiguation context
}

// ignoredTags are element names whose text content is never translatable.
var ignoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"code":     true,
	"pre":      true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"math":     true,
}

// structuralTags is the denylist for context hints: names that carry no
// disambiguation value.
var structuralTags = map[string]bool{
	"div":      true,
	"span":     true,
	"html":     true,
	"head":     true,
	"body":     true,
	"script":   true,
	"style":    true,
	"meta":     true,
	"link":     true,
	"svg":      true,
	"path":     true,
	"g":        true,
	"fragment": true,
	"react":    true,
}

// translatableAttrs are HTML attributes whose values are user-visible.
var translatableAttrs = map[string]bool{
	"title":       true,
	"alt":         true,
	"placeholder": true,
	"aria-label":  true,
}

const (
	// tagContextRadius is how far around a match the scanner looks for
	// enclosing tag names.
	tagContextRadius = 100
	// maxContextTags caps the tag hints attached to one fragment.
	maxContextTags = 3
)

var (
	// Tag-enclosed text in markup-like sources: >Some text<.
	tagTextRE = regexp.MustCompile(`>([^<>{}\n]+)<`)
	// Attribute values: title="...", placeholder='...'.
	attrTextRE = regexp.MustCompile(`(?:title|alt|placeholder|aria-label)\s*=\s*["']([^"']+)["']`)
	// String literals inside JSX braces: {"Some text"} or {'Some text'}.
	braceTextRE = regexp.MustCompile(`\{\s*["']([^"'{}]+)["']\s*\}`)
	// Tag names, for context hints.
	tagNameRE = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9-]*)`)
)

// ScanFile extracts candidate fragments from one source file. Content type is
// chosen by extension: .html/.htm get a full DOM walk, everything else gets
// the best-effort textual scan.
func ScanFile(path, content string) ([]Fragment, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return scanHTML(path, content)
	default:
		return scanSource(path, content), nil
	}
}

// scanHTML walks the parsed DOM and collects text nodes plus translatable
// attribute values, skipping ignored subtrees and anything marked
// data-no-translate.
func scanHTML(path, content string) ([]Fragment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, &ScanError{File: path, Cause: err}
	}

	var fragments []Fragment
	seen := make(map[string]bool)

	add := func(text string, tags []string) {
		text = strings.TrimSpace(text)
		if text == "" || !rustle.IsTranslatableText(text) {
			return
		}
		fp := rustle.Fingerprint(text)
		if seen[fp] {
			return
		}
		seen[fp] = true
		fragments = append(fragments, Fragment{Text: text, File: path, Tags: tags})
	}

	var walk func(n *html.Node, ancestors []string)
	walk = func(n *html.Node, ancestors []string) {
		if n.Type == html.ElementNode {
			name := strings.ToLower(n.Data)
			if ignoredTags[name] {
				return
			}
			for _, attr := range n.Attr {
				if attr.Key == "data-no-translate" {
					return
				}
				if translatableAttrs[attr.Key] {
					add(attr.Val, contextTags(append(ancestors, name)))
				}
			}
			ancestors = append(ancestors, name)
		}

		if n.Type == html.TextNode {
			add(n.Data, contextTags(ancestors))
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, ancestors)
		}
	}

	for _, root := range doc.Nodes {
		walk(root, nil)
	}
	return fragments, nil
}

// scanSource is the textual fallback for JSX/TSX/JS/TS and similar files:
// tag-enclosed text, translatable attribute values, and string literals in
// braces.
func scanSource(path, content string) []Fragment {
	var fragments []Fragment
	seen := make(map[string]bool)

	add := func(text string, start, end int) {
		text = strings.TrimSpace(text)
		if text == "" || !rustle.IsTranslatableText(text) {
			return
		}
		fp := rustle.Fingerprint(text)
		if seen[fp] {
			return
		}
		seen[fp] = true
		fragments = append(fragments, Fragment{
			Text:  text,
			File:  path,
			Start: start,
			End:   end,
			Tags:  surroundingTags(content, start, end),
		})
	}

	for _, re := range []*regexp.Regexp{tagTextRE, attrTextRE, braceTextRE} {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			// m[2], m[3] bound the first capture group.
			add(content[m[2]:m[3]], m[2], m[3])
		}
	}
	return fragments
}

// surroundingTags scans a window around the match for enclosing tag names.
func surroundingTags(content string, start, end int) []string {
	lo := start - tagContextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + tagContextRadius
	if hi > len(content) {
		hi = len(content)
	}

	var names []string
	for _, m := range tagNameRE.FindAllStringSubmatch(content[lo:hi], -1) {
		names = append(names, strings.ToLower(m[1]))
	}
	return contextTags(names)
}

// contextTags filters the structural denylist, deduplicates, and caps.
func contextTags(names []string) []string {
	var tags []string
	seen := make(map[string]bool)
	// Innermost names carry the most signal; walk from the end.
	for i := len(names) - 1; i >= 0 && len(tags) < maxContextTags; i-- {
		name := strings.ToLower(names[i])
		if structuralTags[name] || seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, name)
	}
	return tags
}
