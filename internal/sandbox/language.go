package sandbox

import (
	"regexp"
	"strings"
)

// Identify picks a catalog language for content. It first looks for a
// catalog entry whose full name ("Python (3.8.1)") occurs in the content,
// then for one whose base name ("Python") occurs as a whole word.
// Both passes are case-insensitive and keep catalog order.
func Identify(catalog []Language, content string) (Language, bool) {
	lower := strings.ToLower(content)

	for _, lang := range catalog {
		name := strings.ToLower(strings.TrimSpace(lang.Name))
		if name != "" && strings.Contains(lower, name) {
			return lang, true
		}
	}

	for _, lang := range catalog {
		base := baseName(lang.Name)
		if base == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)(^|[^\w])` + regexp.QuoteMeta(base) + `($|[^\w])`)
		if err != nil {
			continue
		}
		if re.MatchString(content) {
			return lang, true
		}
	}

	return Language{}, false
}

// baseName strips the version suffix: "C++ (GCC 9.2.0)" becomes "C++".
func baseName(name string) string {
	if i := strings.Index(name, " ("); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}
