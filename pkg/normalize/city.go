package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// cityAliases maps lower-cased city spellings to their canonical names.
var cityAliases = map[string]string{
	"gurgaon":            "Gurugram",
	"gurugram":           "Gurugram",
	"noida extension":    "Greater Noida West",
	"greater noida west": "Greater Noida West",
}

// City returns the canonical name of a city label. Unknown labels are title-cased.
func City(name string) string {
	key := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if canonical, ok := cityAliases[key]; ok {
		return canonical
	}
	return cases.Title(language.English).String(key)
}
