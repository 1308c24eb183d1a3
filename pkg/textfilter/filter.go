// Package textfilter keeps generated text within a content rating by
// swapping profanity for milder words.
package textfilter

import (
	"cmp"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/drama-high/pkg/state"
)

// replacements maps each filtered word to its school-appropriate stand-in.
var replacements = map[string]string{
	"fuck":         "fudge",
	"shit":         "shoot",
	"damn":         "dang",
	"hell":         "heck",
	"ass":          "butt",
	"bitch":        "jerk",
	"bastard":      "jerk",
	"crap":         "crud",
	"piss":         "ticked",
	"cock":         "[censored]",
	"dick":         "jerk",
	"pussy":        "[censored]",
	"tits":         "[censored]",
	"boobs":        "[censored]",
	"whore":        "[censored]",
	"slut":         "[censored]",
	"fag":          "[censored]",
	"retard":       "[censored]",
	"nigger":       "[censored]",
	"nigga":        "[censored]",
	"spic":         "[censored]",
	"chink":        "[censored]",
	"kike":         "[censored]",
	"motherfucker": "mother-trucker",
	"goddamn":      "gosh-dang",
	"jesus christ": "jeez",
	"christ":       "crikey",
	"asshole":      "jerk",
	"dumbass":      "dummy",
	"jackass":      "jerk",
	"smartass":     "smarty",
	"badass":       "tough",
	"bullshit":     "baloney",
	"horseshit":    "nonsense",
	"dipshit":      "dummy",
	"shithead":     "jerk",
	"dickhead":     "jerk",
	"prick":        "jerk",
	"douche":       "jerk",
	"douchebag":    "jerk",
}

const censored = "[censored]"

// Filter replaces profanity in generated text. It is safe for concurrent use.
type Filter struct {
	pattern *regexp.Regexp
}

// New compiles the word list into one case-insensitive pattern. Longer
// entries come first so multi-word phrases win over their parts.
func New() *Filter {
	words := slices.Collect(maps.Keys(replacements))
	slices.SortFunc(words, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return &Filter{
		pattern: regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)(e?s)?\b`),
	}
}

// Clean returns text with every filtered word replaced, keeping the case
// pattern and plural suffix of the original.
func (f *Filter) Clean(text string) string {
	if text == "" {
		return text
	}
	return f.pattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := f.pattern.FindStringSubmatch(match)
		replacement := replacements[strings.ToLower(groups[1])]
		if groups[2] != "" && replacement != censored {
			replacement += "s"
		}
		return preserveCase(match, replacement)
	})
}

// Contains reports whether text has anything Clean would replace.
func (f *Filter) Contains(text string) bool {
	return f.pattern.MatchString(text)
}

// CleanTurn filters every player-visible string of a turn in place.
// Inventory removes are cleaned like adds so they match the stored names.
// Relationship ids are keys, not display text, and are left alone.
func (f *Filter) CleanTurn(unit *state.TurnUnit) {
	if unit == nil {
		return
	}
	unit.NarrativeText = f.Clean(unit.NarrativeText)
	unit.Quest = f.Clean(unit.Quest)
	unit.Location = f.Clean(unit.Location)
	for i := range unit.Choices {
		unit.Choices[i].Text = f.Clean(unit.Choices[i].Text)
		unit.Choices[i].ActionSummary = f.Clean(unit.Choices[i].ActionSummary)
	}
	unit.Inventory.Add = f.cleanAll(unit.Inventory.Add)
	unit.Inventory.Remove = f.cleanAll(unit.Inventory.Remove)
	for i := range unit.Relationships {
		unit.Relationships[i].DisplayName = f.Clean(unit.Relationships[i].DisplayName)
	}
}

func (f *Filter) cleanAll(items []string) []string {
	for i, s := range items {
		items[i] = f.Clean(s)
	}
	return items
}

// preserveCase applies the case pattern of original to replacement.
func preserveCase(original, replacement string) string {
	switch {
	case original == "":
		return replacement
	case replacement == censored:
		return replacement
	case strings.ToUpper(original) == original:
		return strings.ToUpper(replacement)
	case strings.ToLower(original) == original:
		return strings.ToLower(replacement)
	}
	// Casers keep state, so each call gets its own
	title := cases.Title(language.English)
	if title.String(strings.ToLower(original)) == original {
		return title.String(replacement)
	}

	// Mixed case: copy it letter by letter
	orig := []rune(original)
	out := []rune(replacement)
	for i, r := range out {
		if i < len(orig) && unicode.IsUpper(orig[i]) {
			out[i] = unicode.ToUpper(r)
		} else {
			out[i] = unicode.ToLower(r)
		}
	}
	return string(out)
}

// Restricts reports whether a content rating calls for filtering.
func Restricts(rating string) bool {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(rating), "-", "")) {
	case "G", "PG", "PG13":
		return true
	default:
		return false
	}
}
