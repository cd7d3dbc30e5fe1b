// Package i18n resolves assistant languages and locale-aware number printing.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Language is an assistant speaking language as shown to shopkeepers.
type Language string

const (
	English  Language = "English"
	Hindi    Language = "Hindi"
	Hinglish Language = "Hinglish"
	Gujarati Language = "Gujarati"
	Tamil    Language = "Tamil"
	Bengali  Language = "Bengali"
	Marathi  Language = "Marathi"
)

// DefaultLanguage is used when a request names no language.
const DefaultLanguage = Hinglish

// Hinglish maps to Hindi in Latin script.
var languageTags = map[Language]language.Tag{
	English:  language.MustParse("en-IN"),
	Hindi:    language.Hindi,
	Hinglish: language.MustParse("hi-Latn"),
	Gujarati: language.Gujarati,
	Tamil:    language.Tamil,
	Bengali:  language.Bengali,
	Marathi:  language.Marathi,
}

// ordered for matcher preference; the first entry is the fallback.
var supported = []Language{Hinglish, English, Hindi, Gujarati, Tamil, Bengali, Marathi}

var matcher = language.NewMatcher(supportedTags())

func supportedTags() []language.Tag {
	tags := make([]language.Tag, 0, len(supported))
	for _, lang := range supported {
		tags = append(tags, languageTags[lang])
	}
	return tags
}

// Supported returns every language the assistant can speak.
func Supported() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Tag returns the BCP 47 tag for the language.
func (l Language) Tag() language.Tag {
	if tag, ok := languageTags[l]; ok {
		return tag
	}
	return languageTags[DefaultLanguage]
}

// ParseLanguage accepts either a display name ("Hinglish") or a BCP 47 tag
// ("gu-IN"). Empty input yields DefaultLanguage.
func ParseLanguage(value string) (Language, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return DefaultLanguage, nil
	}
	for _, lang := range supported {
		if strings.EqualFold(string(lang), trimmed) {
			return lang, nil
		}
	}

	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("unsupported language %q", value)
	}
	_, index, confidence := matcher.Match(tag)
	if confidence < language.High {
		return "", fmt.Errorf("unsupported language %q", value)
	}
	return supported[index], nil
}

// Printer formats numbers with Indian English conventions.
func Printer() *message.Printer {
	return message.NewPrinter(language.MustParse("en-IN"))
}
