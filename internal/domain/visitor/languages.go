package visitor

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	// PreferenceKey is the durable key the visitor's native language is kept under.
	PreferenceKey = "lingo_language"
	// PreferenceRetention bounds how long the language preference is kept.
	PreferenceRetention = 365 * 24 * time.Hour
)

// LanguageCode is a two-letter ISO 639-1 code.
type LanguageCode string

// ProficiencyLevel is the reading level a visitor targets.
type ProficiencyLevel string

const (
	LevelBeginner     ProficiencyLevel = "beginner"
	LevelIntermediate ProficiencyLevel = "intermediate"
	LevelAdvanced     ProficiencyLevel = "advanced"
)

// Levels lists proficiency levels in display order.
var Levels = []ProficiencyLevel{LevelBeginner, LevelIntermediate, LevelAdvanced}

// Language describes one supported language.
type Language struct {
	Code       LanguageCode `json:"code"`
	Name       string       `json:"name"`
	NativeName string       `json:"nativeName"`
}

// SupportedLanguages is the fixed table used for detection and selection.
var SupportedLanguages = []Language{
	{"en", "English", "English"},
	{"es", "Spanish", "Español"},
	{"fr", "French", "Français"},
	{"de", "German", "Deutsch"},
	{"it", "Italian", "Italiano"},
	{"pt", "Portuguese", "Português"},
	{"nl", "Dutch", "Nederlands"},
	{"pl", "Polish", "Polski"},
	{"ru", "Russian", "Русский"},
	{"ja", "Japanese", "日本語"},
	{"zh", "Chinese", "中文"},
	{"ko", "Korean", "한국어"},
	{"tr", "Turkish", "Türkçe"},
	{"sv", "Swedish", "Svenska"},
}

var languageIndex = func() map[LanguageCode]Language {
	index := make(map[LanguageCode]Language, len(SupportedLanguages))
	for _, l := range SupportedLanguages {
		index[l.Code] = l
	}
	return index
}()

// ParseLanguage normalises raw and checks it against the supported table.
func ParseLanguage(raw string) (LanguageCode, error) {
	code := LanguageCode(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := languageIndex[code]; !ok {
		return "", ErrUnsupportedLanguage
	}
	return code, nil
}

// ParseLevel normalises raw and checks it against the known levels.
func ParseLevel(raw string) (ProficiencyLevel, error) {
	level := ProficiencyLevel(strings.ToLower(strings.TrimSpace(raw)))
	for _, l := range Levels {
		if l == level {
			return level, nil
		}
	}
	return "", ErrUnsupportedLevel
}

// DetectNativeLanguage matches the primary subtags of an Accept-Language header
// against the supported table in preference order. No match yields "".
func DetectNativeLanguage(acceptLanguage string) LanguageCode {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil {
		return ""
	}
	for _, tag := range tags {
		if tag == language.Und {
			continue
		}
		base, confidence := tag.Base()
		if confidence == language.No {
			continue
		}
		if _, ok := languageIndex[LanguageCode(base.String())]; ok {
			return LanguageCode(base.String())
		}
	}
	return ""
}
