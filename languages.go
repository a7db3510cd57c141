package rustle

import (
	"regexp"
	"strings"
)

// languageNames maps language codes to human-readable names used in AI
// prompts and CLI output.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
	"pl": "Polish",
	"ru": "Russian",
	"uk": "Ukrainian",
	"tr": "Turkish",
	"ar": "Arabic",
	"he": "Hebrew",
	"hi": "Hindi",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"vi": "Vietnamese",
	"th": "Thai",
	"id": "Indonesian",
	"sv": "Swedish",
	"da": "Danish",
	"fi": "Finnish",
	"nb": "Norwegian Bokmål",
	"cs": "Czech",
	"el": "Greek",
	"hu": "Hungarian",
	"ro": "Romanian",
}

var localeRE = regexp.MustCompile(`^[a-z]{2,3}(?:[-_][A-Za-z]{2})?$`)

// ValidLocale reports whether code looks like a usable locale: a 2-3 letter
// language code with an optional region subtag ("es", "pt_BR", "zh-CN").
func ValidLocale(code string) bool {
	return localeRE.MatchString(code)
}

// BaseLang extracts the base language code: "en" from "en_US" or "en-US".
func BaseLang(code string) string {
	code = strings.ToLower(code)
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		return code[:i]
	}
	return code
}

// SameLanguage reports whether two locale codes share a base language, in
// which case translation can be bypassed.
func SameLanguage(a, b string) bool {
	return BaseLang(a) == BaseLang(b)
}

// LanguageName returns a human-readable name for a locale code, falling back
// to the code itself for unknown languages.
func LanguageName(code string) string {
	if name, ok := languageNames[BaseLang(code)]; ok {
		return name
	}
	return code
}
