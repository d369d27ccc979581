package collections

import "strings"

// usStates maps US state full names to their abbreviations.
var usStates = map[string]string{
	"alabama":        "AL",
	"alaska":         "AK",
	"arizona":        "AZ",
	"arkansas":       "AR",
	"california":     "CA",
	"colorado":       "CO",
	"connecticut":    "CT",
	"delaware":       "DE",
	"florida":        "FL",
	"georgia":        "GA",
	"hawaii":         "HI",
	"idaho":          "ID",
	"illinois":       "IL",
	"indiana":        "IN",
	"iowa":           "IA",
	"kansas":         "KS",
	"kentucky":       "KY",
	"louisiana":      "LA",
	"maine":          "ME",
	"maryland":       "MD",
	"massachusetts":  "MA",
	"michigan":       "MI",
	"minnesota":      "MN",
	"mississippi":    "MS",
	"missouri":       "MO",
	"montana":        "MT",
	"nebraska":       "NE",
	"nevada":         "NV",
	"new hampshire":  "NH",
	"new jersey":     "NJ",
	"new mexico":     "NM",
	"new york":       "NY",
	"north carolina": "NC",
	"north dakota":   "ND",
	"ohio":           "OH",
	"oklahoma":       "OK",
	"oregon":         "OR",
	"pennsylvania":   "PA",
	"rhode island":   "RI",
	"south carolina": "SC",
	"south dakota":   "SD",
	"tennessee":      "TN",
	"texas":          "TX",
	"utah":           "UT",
	"vermont":        "VT",
	"virginia":       "VA",
	"washington":     "WA",
	"west virginia":  "WV",
	"wisconsin":      "WI",
	"wyoming":        "WY",
}

// NormalizeLocation abbreviates a trailing US state name, so "Austin, Texas"
// and "austin, tx" both become "Austin, TX". Remote-style values and
// locations outside the US pass through trimmed.
func NormalizeLocation(s string) string {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, ",")
	if i < 0 {
		return normalizeState(s)
	}

	city := strings.TrimSpace(s[:i])
	state := normalizeState(s[i+1:])
	if city == "" {
		return state
	}
	if state == "" {
		return city
	}
	if isStateCode(state) {
		city = titleCase(city)
	}
	return city + ", " + state
}

// normalizeState returns the 2-letter code for a US state name or code, or
// the trimmed input when it is neither.
func normalizeState(s string) string {
	s = strings.TrimSpace(s)
	if code, ok := usStates[strings.ToLower(s)]; ok {
		return code
	}
	if upper := strings.ToUpper(s); isStateCode(upper) {
		return upper
	}
	return s
}

func isStateCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, code := range usStates {
		if code == s {
			return true
		}
	}
	return false
}

// titleCase upper-cases the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
