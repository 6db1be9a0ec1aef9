package dosing_controller

import (
	"fmt"
	"math"
	"time"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
	"github.com/LeonardoBeccarini/pond_doser/internal/model/messages"
)

// Window restricts a rule to certain local hours.
type Window int

const (
	WindowAnyTime Window = iota
	// WindowMorningEvening is 06:00-08:59 and 16:00-18:59.
	WindowMorningEvening
	// WindowEvening is 16:00-18:59.
	WindowEvening
)

func (w Window) Contains(hour int) bool {
	evening := hour >= 16 && hour <= 18
	switch w {
	case WindowMorningEvening:
		return (hour >= 6 && hour <= 8) || evening
	case WindowEvening:
		return evening
	default:
		return true
	}
}

func (w Window) String() string {
	switch w {
	case WindowMorningEvening:
		return "morning_evening"
	case WindowEvening:
		return "evening"
	default:
		return "any"
	}
}

// Form selects the unit conversion of a rule's amount.
type Form int

const (
	Powder Form = iota // grams
	Liquid             // millilitres
)

func (f Form) unit() string {
	if f == Liquid {
		return "ml"
	}
	return "g"
}

func (f Form) rotations(amount float64) float64 {
	if f == Liquid {
		return LiquidRotations(amount)
	}
	return PowderRotations(amount)
}

// Rule is the gate and dose of one substance. The condition that triggers
// it is fixed per substance; thresholds live on the RuleSet.
type Rule struct {
	Substance    model.Substance
	Cooldown     time.Duration
	Window       Window
	AmountPerRai float64
	Form         Form
	Enabled      bool
}

// RuleSet holds the four dosing rules indexed by substance channel.
type RuleSet struct {
	PHLow    float64
	TempHigh float64
	Rules    [model.NumSubstances]Rule
}

// DefaultRuleSet returns the production thresholds.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		PHLow:    6.8,
		TempHigh: 30,
		Rules: [model.NumSubstances]Rule{
			model.Probiotic:    {Substance: model.Probiotic, Cooldown: 7 * 24 * time.Hour, Window: WindowMorningEvening, AmountPerRai: 5, Form: Powder, Enabled: true},
			model.CaCO3:        {Substance: model.CaCO3, Cooldown: 8 * time.Hour, Window: WindowMorningEvening, AmountPerRai: 2500, Form: Powder, Enabled: true},
			model.MgSO4:        {Substance: model.MgSO4, Cooldown: 2 * 24 * time.Hour, Window: WindowEvening, AmountPerRai: 2500, Form: Powder, Enabled: true},
			model.GreenExtract: {Substance: model.GreenExtract, Cooldown: 20 * time.Hour, Window: WindowMorningEvening, AmountPerRai: 150, Form: Liquid, Enabled: true},
		},
	}
}

// Input is everything a decision depends on. Now must already be in the
// location whose hour-of-day gates the windows.
type Input struct {
	Pond       model.PondAttributes
	Reading    model.SensorReading
	WaterLabel string
	// SinceLast is the time since each substance was last dosed, indexed by
	// channel; dosestate.Never when it never was.
	SinceLast [model.NumSubstances]time.Duration
	Now       time.Time
}

// Decision is the outcome of one evaluation.
type Decision struct {
	PondID    string
	Rotations [model.NumSubstances]int
	Reasons   []string
	AnyDosed  bool
}

// Dosed returns the substances with a positive rotation count.
func (d Decision) Dosed() []model.Substance {
	var out []model.Substance
	for _, s := range model.Substances() {
		if d.Rotations[s.Channel()] > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Evaluate applies every rule independently. It has no side effects.
func (rs RuleSet) Evaluate(in Input) Decision {
	dec := Decision{PondID: in.Pond.PondID}
	size := in.Pond.SizeRai
	if size <= 0 {
		size = model.DefaultPondSizeRai
	}
	hour := in.Now.Hour()

	for _, s := range model.Substances() {
		rule := rs.Rules[s.Channel()]
		if !rule.Enabled {
			continue
		}
		cause, ok := rs.condition(s, in)
		if !ok {
			continue
		}
		if in.SinceLast[s.Channel()] <= rule.Cooldown {
			continue
		}
		if !rule.Window.Contains(hour) {
			continue
		}
		amount := rule.AmountPerRai * size
		rot := int(math.Round(rule.Form.rotations(amount)))
		if rot <= 0 {
			continue
		}
		dec.Rotations[s.Channel()] = rot
		dec.Reasons = append(dec.Reasons,
			fmt.Sprintf("%s: %s, %.1f %s -> %d rotation(s)", s, cause, amount, rule.Form.unit(), rot))
		dec.AnyDosed = true
	}
	return dec
}

// condition reports whether the substance's trigger holds and why.
func (rs RuleSet) condition(s model.Substance, in Input) (string, bool) {
	phLow := in.Reading.PH < rs.PHLow
	switch s {
	case model.Probiotic:
		return "scheduled", true
	case model.CaCO3:
		return fmt.Sprintf("pH %.2f < %.2f", in.Reading.PH, rs.PHLow), phLow
	case model.MgSO4:
		return fmt.Sprintf("temperature %.1f > %.1f", in.Reading.Temperature, rs.TempHigh), in.Reading.Temperature > rs.TempHigh
	case model.GreenExtract:
		if messages.IndicatesClearWater(in.WaterLabel) {
			return "water too clear", true
		}
		return fmt.Sprintf("pH %.2f < %.2f", in.Reading.PH, rs.PHLow), phLow
	}
	return "", false
}
