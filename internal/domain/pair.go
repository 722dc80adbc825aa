// Package domain defines core data structures used throughout the scanner.
package domain

import (
	"fmt"
	"strings"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// ParsePair splits a BASE_QUOTE (or BASE/QUOTE) identifier.
// ok is false when the identifier has no quote part, e.g. an equity ticker.
func ParsePair(symbol string) (Pair, bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"_", "/"} {
		parts := strings.Split(s, sep)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return Pair{From: parts[0], To: parts[1]}, true
		}
	}
	return Pair{From: s}, false
}

// String returns the string representation.
func (p Pair) String() string {
	if p.To == "" {
		return p.From
	}
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}
