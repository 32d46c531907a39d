package advisor

import "strings"

// ExtractInstruments scans the user message for mentions of known instrument
// symbols. Returns deduplicated uppercase symbols in mention order.
func ExtractInstruments(text string, known []string) []string {
	upper := strings.ToUpper(text)
	words := strings.FieldsFunc(upper, func(r rune) bool {
		return !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.')
	})

	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[strings.ToUpper(k)] = true
	}

	seen := make(map[string]bool)
	var result []string
	for _, w := range words {
		if knownSet[w] && !seen[w] {
			seen[w] = true
			result = append(result, w)
		}
	}
	return result
}
