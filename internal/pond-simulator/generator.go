package pond_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
	"github.com/LeonardoBeccarini/pond_doser/internal/model/messages"
)

// Tunables of the random walk.
const (
	phMean   = 7.2
	tempMean = 29.0
	doMean   = 6.0

	// Fraction of the distance to the mean recovered on every step.
	reversion = 0.05

	phStep   = 0.08
	tempStep = 0.3
	doStep   = 0.15

	// Daily temperature swing around tempMean, peaking at 15:00.
	tempSwing = 2.0

	// Water response to one servo rotation.
	phPerCaCO3Rotation   = 0.05
	doPerExtractRotation = 0.1
)

// Generator walks pH, temperature and dissolved oxygen of one pond.
type Generator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	pondID string
	ph     float64
	temp   float64
	do     float64
}

// NewGenerator starts from the long-run means. rnd makes runs reproducible.
func NewGenerator(pondID string, rnd *rand.Rand) *Generator {
	return &Generator{
		rnd:    rnd,
		pondID: pondID,
		ph:     phMean,
		temp:   tempMean,
		do:     doMean,
	}
}

// Set overrides the current state, used to start a pond in a given condition.
func (g *Generator) Set(ph, temp, do float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ph, g.temp, g.do = ph, temp, do
}

// Next advances the walk one step and returns the reading observed at now.
func (g *Generator) Next(now time.Time) model.SensorReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	diurnal := tempSwing * math.Sin(2*math.Pi*(float64(now.Hour())+float64(now.Minute())/60-9)/24)

	g.ph = clamp(g.step(g.ph, phMean, phStep), 5.5, 9.5)
	g.temp = clamp(g.step(g.temp, tempMean+diurnal, tempStep), 20, 38)
	g.do = clamp(g.step(g.do, doMean, doStep), 0.5, 12)

	return model.SensorReading{
		PondID:      g.pondID,
		PH:          round2(g.ph),
		Temperature: round2(g.temp),
		DO:          round2(g.do),
		Timestamp:   now,
	}
}

func (g *Generator) step(v, mean, sigma float64) float64 {
	return v + reversion*(mean-v) + g.rnd.NormFloat64()*sigma
}

// ApplyDose reflects a dose command in the water: lime raises pH and the
// green extract lifts dissolved oxygen.
func (g *Generator) ApplyDose(cmd messages.DoseCommand) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ph = clamp(g.ph+phPerCaCO3Rotation*float64(cmd.Rounds[model.CaCO3.Channel()]), 5.5, 9.5)
	g.do = clamp(g.do+doPerExtractRotation*float64(cmd.Rounds[model.GreenExtract.Channel()]), 0.5, 12)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
