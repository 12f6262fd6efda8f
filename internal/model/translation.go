package model

import (
	"strings"

	"golang.org/x/text/language"
)

// Translation is a per-language override of a configuration's label and
// description. Language codes are free text; duplicates are allowed.
type Translation struct {
	Language    string `json:"language"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// CanonicalLanguage returns the canonical BCP 47 form of code ("en-us" ->
// "en-US"). Codes that do not parse are returned trimmed but otherwise
// unchanged.
func CanonicalLanguage(code string) string {
	code = strings.TrimSpace(code)
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

// CanonicalizeTranslations rewrites every translation's language code in place.
func CanonicalizeTranslations(ts []Translation) {
	for i := range ts {
		ts[i].Language = CanonicalLanguage(ts[i].Language)
	}
}

// BestTranslation picks the translation that best matches the preferred
// languages (e.g. "de-CH", "fr"). It returns false when no translation is a
// reasonable match.
func (c *Configuration) BestTranslation(preferred ...string) (Translation, bool) {
	if len(c.Translations) == 0 || len(preferred) == 0 {
		return Translation{}, false
	}

	var (
		tags  []language.Tag
		index []int
	)
	for i, t := range c.Translations {
		tag, err := language.Parse(t.Language)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		index = append(index, i)
	}
	if len(tags) == 0 {
		return Translation{}, false
	}

	var want []language.Tag
	for _, p := range preferred {
		if tag, err := language.Parse(p); err == nil {
			want = append(want, tag)
		}
	}
	if len(want) == 0 {
		return Translation{}, false
	}

	_, i, conf := language.NewMatcher(tags).Match(want...)
	if conf == language.No {
		return Translation{}, false
	}
	return c.Translations[index[i]], true
}
