package entities

import "strings"

// Substance identifies one dosing channel of the pond doser.
// The numeric value is the channel index used in dose commands.
type Substance int

const (
	Probiotic Substance = iota
	CaCO3
	MgSO4
	GreenExtract
)

// NumSubstances is the number of dosing channels on the doser.
const NumSubstances = 4

var substanceNames = [NumSubstances]string{"probiotic", "caco3", "mgso4", "green_extract"}

func (s Substance) String() string {
	if s < 0 || int(s) >= NumSubstances {
		return "unknown"
	}
	return substanceNames[s]
}

// Channel returns the index of the substance in a rounds array.
func (s Substance) Channel() int { return int(s) }

// Valid reports whether s is one of the known substances.
func (s Substance) Valid() bool { return s >= 0 && int(s) < NumSubstances }

// Substances returns all substances in channel order.
func Substances() []Substance {
	return []Substance{Probiotic, CaCO3, MgSO4, GreenExtract}
}

// ParseSubstance accepts the canonical lower-case names ("caco3", "green_extract"...).
func ParseSubstance(name string) (Substance, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range substanceNames {
		if s == n {
			return Substance(i), true
		}
	}
	return 0, false
}
