package engine

import "strings"

// Algorithm selects the scheduling strategy.
type Algorithm int

const (
	// Greedy is the default and the fallback for unknown names.
	Greedy Algorithm = iota
	// Heuristic runs Greedy followed by the configured optimizer.
	Heuristic
)

func (a Algorithm) String() string {
	if a == Heuristic {
		return "HEURISTIC"
	}
	return "GREEDY"
}

// ParseAlgorithm resolves a case-insensitive algorithm name. An empty name
// selects Greedy. Unknown names also resolve to Greedy with ok set to false
// so callers can decide whether the fallback is acceptable.
func ParseAlgorithm(name string) (a Algorithm, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "GREEDY":
		return Greedy, true
	case "HEURISTIC":
		return Heuristic, true
	default:
		return Greedy, false
	}
}
