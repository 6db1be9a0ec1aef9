package dosing_controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
	"github.com/LeonardoBeccarini/pond_doser/pkg/dosestate"
)

func at(hour int) time.Time {
	return time.Date(2025, 6, 1, hour, 30, 0, 0, time.UTC)
}

func allNever() [model.NumSubstances]time.Duration {
	return [model.NumSubstances]time.Duration{dosestate.Never, dosestate.Never, dosestate.Never, dosestate.Never}
}

func neutral(pondID string) model.SensorReading {
	return model.SensorReading{PondID: pondID, PH: 7, Temperature: 29, DO: 6}
}

func TestWindowContains(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		me := (hour >= 6 && hour <= 8) || (hour >= 16 && hour <= 18)
		assert.Equal(t, me, WindowMorningEvening.Contains(hour), "morning/evening hour %d", hour)
		assert.Equal(t, hour >= 16 && hour <= 18, WindowEvening.Contains(hour), "evening hour %d", hour)
		assert.True(t, WindowAnyTime.Contains(hour))
	}
}

func TestProbioticRoundsToZeroForSmallPond(t *testing.T) {
	since := allNever()
	since[model.Probiotic] = 8 * 24 * time.Hour

	dec := DefaultRuleSet().Evaluate(Input{
		Pond:      model.PondAttributes{PondID: "1", SizeRai: 2},
		Reading:   neutral("1"),
		SinceLast: since,
		Now:       at(7),
	})

	assert.Equal(t, 0, dec.Rotations[model.Probiotic])
	assert.False(t, dec.AnyDosed)
	assert.Empty(t, dec.Reasons)
}

func TestProbioticLargePond(t *testing.T) {
	dec := DefaultRuleSet().Evaluate(Input{
		Pond:      model.PondAttributes{PondID: "9", SizeRai: 100},
		Reading:   neutral("9"),
		SinceLast: allNever(),
		Now:       at(7),
	})
	// 500 g -> 0.58 -> 1 rotation
	assert.Equal(t, [4]int{1, 0, 0, 0}, dec.Rotations)
	assert.True(t, dec.AnyDosed)
	assert.Len(t, dec.Reasons, 1)
	assert.Contains(t, dec.Reasons[0], "probiotic")
}

func TestCaCO3LowPH(t *testing.T) {
	r := neutral("1")
	r.PH = 6.5
	dec := DefaultRuleSet().Evaluate(Input{
		Pond:      model.DefaultPond("1"),
		Reading:   r,
		SinceLast: allNever(),
		Now:       at(17),
	})

	assert.Equal(t, 3, dec.Rotations[model.CaCO3])
	assert.Equal(t, [4]int{0, 3, 0, 0}, dec.Rotations)
	assert.True(t, dec.AnyDosed)
	assert.Len(t, dec.Reasons, 1)
	assert.Contains(t, dec.Reasons[0], "caco3")
	assert.Equal(t, []model.Substance{model.CaCO3}, dec.Dosed())
}

func TestCaCO3Gates(t *testing.T) {
	rs := DefaultRuleSet()
	r := neutral("1")
	r.PH = 6.5

	since := allNever()
	since[model.CaCO3] = 8 * time.Hour
	dec := rs.Evaluate(Input{Pond: model.DefaultPond("1"), Reading: r, SinceLast: since, Now: at(17)})
	assert.False(t, dec.AnyDosed, "cooldown must be strictly exceeded")

	since[model.CaCO3] = 8*time.Hour + time.Second
	dec = rs.Evaluate(Input{Pond: model.DefaultPond("1"), Reading: r, SinceLast: since, Now: at(17)})
	assert.True(t, dec.AnyDosed)

	dec = rs.Evaluate(Input{Pond: model.DefaultPond("1"), Reading: r, SinceLast: allNever(), Now: at(12)})
	assert.False(t, dec.AnyDosed, "outside morning/evening")

	r.PH = 6.8
	dec = rs.Evaluate(Input{Pond: model.DefaultPond("1"), Reading: r, SinceLast: allNever(), Now: at(17)})
	assert.False(t, dec.AnyDosed, "pH at threshold is not low")
}

func TestMgSO4EveningOnly(t *testing.T) {
	rs := DefaultRuleSet()
	r := neutral("1")
	r.Temperature = 31

	dec := rs.Evaluate(Input{Pond: model.DefaultPond("1"), Reading: r, SinceLast: allNever(), Now: at(7)})
	assert.Equal(t, 0, dec.Rotations[model.MgSO4])

	dec = rs.Evaluate(Input{Pond: model.DefaultPond("1"), Reading: r, SinceLast: allNever(), Now: at(18)})
	assert.Equal(t, 3, dec.Rotations[model.MgSO4])

	r.Temperature = 30
	dec = rs.Evaluate(Input{Pond: model.DefaultPond("1"), Reading: r, SinceLast: allNever(), Now: at(18)})
	assert.False(t, dec.AnyDosed)
}

func TestGreenExtractLabelOrPH(t *testing.T) {
	rs := DefaultRuleSet()
	pond := model.PondAttributes{PondID: "2", SizeRai: 5}

	byLabel := rs.Evaluate(Input{Pond: pond, Reading: neutral("2"), WaterLabel: "clear (92%)", SinceLast: allNever(), Now: at(16)})
	low := neutral("2")
	low.PH = 6.0
	byPH := rs.Evaluate(Input{Pond: pond, Reading: low, SinceLast: allNever(), Now: at(16)})

	// 750 ml -> exactly 1 rotation either way
	assert.Equal(t, 1, byLabel.Rotations[model.GreenExtract])
	assert.Equal(t, byLabel.Rotations[model.GreenExtract], byPH.Rotations[model.GreenExtract])

	thai := rs.Evaluate(Input{Pond: pond, Reading: neutral("2"), WaterLabel: "น้ำใส", SinceLast: allNever(), Now: at(16)})
	assert.Equal(t, 1, thai.Rotations[model.GreenExtract])

	none := rs.Evaluate(Input{Pond: pond, Reading: neutral("2"), WaterLabel: "green", SinceLast: allNever(), Now: at(16)})
	assert.Equal(t, 0, none.Rotations[model.GreenExtract])
}

func TestNoRuleFires(t *testing.T) {
	rs := DefaultRuleSet()
	dec := rs.Evaluate(Input{Pond: model.DefaultPond("1"), Reading: neutral("1"), SinceLast: allNever(), Now: at(17)})
	assert.False(t, dec.AnyDosed)
	assert.Equal(t, [4]int{}, dec.Rotations)
	assert.Empty(t, dec.Reasons)
	assert.Equal(t, "1", dec.PondID)
}

func TestDisabledRuleAndBadSize(t *testing.T) {
	rs := DefaultRuleSet()
	rs.Rules[model.CaCO3].Enabled = false
	r := neutral("1")
	r.PH = 6.5
	dec := rs.Evaluate(Input{Pond: model.PondAttributes{PondID: "1", SizeRai: -3}, Reading: r, SinceLast: allNever(), Now: at(17)})
	assert.Equal(t, 0, dec.Rotations[model.CaCO3])

	rs = DefaultRuleSet()
	dec = rs.Evaluate(Input{Pond: model.PondAttributes{PondID: "1", SizeRai: 0}, Reading: r, SinceLast: allNever(), Now: at(17)})
	assert.Equal(t, 3, dec.Rotations[model.CaCO3], "non-positive size falls back to 1 rai")
}
