package messages

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	DoseCommandType   = "dose_servo"
	DefaultServoSpeed = 1.0
)

// PondRef is a pond identifier that goes on the wire as a JSON number when
// it is a canonical integer and as a string otherwise ("007", "+5").
type PondRef string

func (p PondRef) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(p))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (p *PondRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = PondRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = PondRef(n.String())
	return nil
}

// DoseCommand is published to the doser board; Rounds is indexed by
// entities.Substance channel.
type DoseCommand struct {
	Type   string  `json:"type"`
	PondID PondRef `json:"pond_id"`
	Rounds [4]int  `json:"rounds"`
	Speed  float64 `json:"speed"`
}

// NewDoseCommand builds a command with the fixed type and servo speed.
func NewDoseCommand(pondID string, rounds [4]int) DoseCommand {
	return DoseCommand{
		Type:   DoseCommandType,
		PondID: PondRef(pondID),
		Rounds: rounds,
		Speed:  DefaultServoSpeed,
	}
}
