package dosing_controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
	"github.com/LeonardoBeccarini/pond_doser/internal/model/messages"
	"github.com/LeonardoBeccarini/pond_doser/internal/sources"
	"github.com/LeonardoBeccarini/pond_doser/pkg/dosestate"
)

const (
	DefaultInterval   = 5 * time.Second
	DefaultWindowSize = 5
	DefaultDOLow      = 5.0

	TriggerWaterClear     = "water_clear"
	TriggerSensorAbnormal = "sensor_abnormal"
)

// Sender delivers a decision to the doser.
type Sender interface {
	Dispatch(dec Decision) error
}

type MonitorConfig struct {
	Interval time.Duration
	// WindowSize is how many recent readings must all be abnormal.
	WindowSize int
	DOLow      float64
	// RecordOnPublishFailure records cooldowns even when the command could
	// not be published.
	RecordOnPublishFailure bool
	MaxConcurrentPonds     int
	// Location is where hour-of-day windows are evaluated.
	Location *time.Location
}

func (c *MonitorConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.DOLow <= 0 {
		c.DOLow = DefaultDOLow
	}
	if c.MaxConcurrentPonds <= 0 {
		c.MaxConcurrentPonds = 1
	}
	if c.Location == nil {
		c.Location = time.Local
	}
}

// Monitor polls the sensor store and the water-color source and doses ponds
// through the Sender.
type Monitor struct {
	sensors  sources.SensorStore
	water    sources.WaterColorSource
	registry sources.PondRegistry
	state    dosestate.Store
	rules    RuleSet
	sender   Sender
	clock    clock.WithTicker
	log      *zap.SugaredLogger
	metrics  *Metrics
	cfg      MonitorConfig

	tickMu     sync.Mutex
	lastSample string

	locksMu   sync.Mutex
	pondLocks map[string]*sync.Mutex

	lastTick atomic.Int64
}

func NewMonitor(
	sensors sources.SensorStore,
	water sources.WaterColorSource,
	registry sources.PondRegistry,
	state dosestate.Store,
	rules RuleSet,
	sender Sender,
	clk clock.WithTicker,
	cfg MonitorConfig,
	log *zap.SugaredLogger,
	metrics *Metrics,
) *Monitor {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cfg.setDefaults()
	return &Monitor{
		sensors:   sensors,
		water:     water,
		registry:  registry,
		state:     state,
		rules:     rules,
		sender:    sender,
		clock:     clk,
		log:       log,
		metrics:   metrics,
		cfg:       cfg,
		pondLocks: make(map[string]*sync.Mutex),
	}
}

// Run ticks immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Infof("monitor: starting, interval=%s tz=%s", m.cfg.Interval, m.cfg.Location)

	ticker := m.clock.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	_ = m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Infof("monitor: stopped")
			return ctx.Err()
		case <-ticker.C():
			_ = m.Tick(ctx)
		}
	}
}

// Tick runs Trigger A then Trigger B once. Per-pond failures are logged and
// counted; only context cancellation is returned.
func (m *Monitor) Tick(ctx context.Context) error {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	start := m.clock.Now()
	label := m.checkWaterColor(ctx)
	m.checkSensorWindows(ctx, label)

	if m.metrics != nil {
		m.metrics.TicksTotal.Inc()
		m.metrics.TickSeconds.Observe(m.clock.Since(start).Seconds())
		m.metrics.LastTickTimestamp.Set(float64(m.clock.Now().Unix()))
	}
	m.lastTick.Store(m.clock.Now().UnixNano())
	return ctx.Err()
}

// LastTick is the completion time of the latest tick, zero before the first.
func (m *Monitor) LastTick() time.Time {
	n := m.lastTick.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// LastTickAge is how long ago the latest tick completed, measured on the
// monitor's clock. ok is false before the first tick.
func (m *Monitor) LastTickAge() (age time.Duration, ok bool) {
	last := m.LastTick()
	if last.IsZero() {
		return 0, false
	}
	return m.clock.Since(last), true
}

// Healthy reports whether a tick completed within three intervals.
func (m *Monitor) Healthy() bool {
	age, ok := m.LastTickAge()
	return ok && age <= 3*m.cfg.Interval
}

// checkWaterColor is Trigger A. A new clear-water sample doses every pond
// known to the sensor store with neutral readings. It returns the current
// label for Trigger B.
func (m *Monitor) checkWaterColor(ctx context.Context) string {
	sample, ok, err := m.water.Latest(ctx)
	if err != nil {
		m.log.Warnf("monitor: water color: %v", err)
		m.metrics.RecordError("water_color", "read_failed")
		return ""
	}
	if !ok {
		return ""
	}
	if sample.SourcePath == m.lastSample || !sample.IsClear() {
		return sample.Label
	}

	ponds, err := m.sensors.PondIDs(ctx)
	if err != nil {
		m.log.Warnf("monitor: list ponds: %v", err)
		m.metrics.RecordError("sensors", "list_failed")
		return sample.Label
	}
	m.log.Infof("monitor: new clear-water sample %s, evaluating %d pond(s)", sample.SourcePath, len(ponds))
	now := m.clock.Now()
	for _, pondID := range ponds {
		if ctx.Err() != nil {
			return sample.Label
		}
		reading := model.SensorReading{
			PondID:      pondID,
			PH:          messages.DefaultPH,
			Temperature: messages.DefaultTemperature,
			DO:          messages.DefaultDO,
			Timestamp:   now,
		}
		m.evaluate(ctx, TriggerWaterClear, reading, sample.Label)
	}
	m.lastSample = sample.SourcePath
	return sample.Label
}

// checkSensorWindows is Trigger B, fanned out over ponds.
func (m *Monitor) checkSensorWindows(ctx context.Context, label string) {
	ponds, err := m.sensors.PondIDs(ctx)
	if err != nil {
		m.log.Warnf("monitor: list ponds: %v", err)
		m.metrics.RecordError("sensors", "list_failed")
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrentPonds)
	for _, pondID := range ponds {
		pondID := pondID
		g.Go(func() error {
			m.checkSensorWindow(gctx, pondID, label)
			return nil
		})
	}
	_ = g.Wait()
}

// checkSensorWindow doses a pond whose last WindowSize readings are all
// abnormal in the same way, once per distinct set of readings.
func (m *Monitor) checkSensorWindow(ctx context.Context, pondID, label string) {
	if ctx.Err() != nil {
		return
	}
	readings, err := m.sensors.Recent(ctx, pondID, m.cfg.WindowSize)
	if err != nil {
		m.log.Warnf("monitor: pond %s: recent readings: %v", pondID, err)
		m.metrics.RecordError("sensors", "read_failed")
		return
	}
	if len(readings) < m.cfg.WindowSize {
		m.log.Debugf("monitor: pond %s has %d reading(s), need %d", pondID, len(readings), m.cfg.WindowSize)
		return
	}

	ids := make([]string, len(readings))
	for i, r := range readings {
		ids[i] = r.ID
	}
	fp := dosestate.FingerprintOf(ids)
	seen, err := m.state.IsFingerprintSeen(ctx, pondID, fp)
	if err != nil {
		m.log.Warnf("monitor: pond %s: fingerprint: %v", pondID, err)
		m.metrics.RecordError("state", "read_failed")
		return
	}
	if seen {
		return
	}

	phLow, tempHigh, doLow := true, true, true
	for _, r := range readings {
		phLow = phLow && r.PH < m.rules.PHLow
		tempHigh = tempHigh && r.Temperature > m.rules.TempHigh
		doLow = doLow && r.DO < m.cfg.DOLow
	}
	if !phLow && !tempHigh && !doLow {
		m.log.Debugf("monitor: pond %s readings within limits", pondID)
		return
	}
	m.log.Infof("monitor: pond %s abnormal for %d readings (ph_low=%t temp_high=%t do_low=%t)",
		pondID, len(readings), phLow, tempHigh, doLow)

	m.evaluate(ctx, TriggerSensorAbnormal, readings[0], label)
	if err := m.state.RecordFingerprint(ctx, pondID, fp); err != nil {
		m.log.Warnf("monitor: pond %s: record fingerprint: %v", pondID, err)
		m.metrics.RecordError("state", "write_failed")
	}
}

// evaluate runs the rules for one pond and dispatches the result. Access to a
// pond's dose state is serialized.
func (m *Monitor) evaluate(ctx context.Context, trigger string, reading model.SensorReading, label string) Decision {
	pondID := reading.PondID
	unlock := m.lockPond(pondID)
	defer unlock()

	pond, err := sources.SizeOf(ctx, m.registry, pondID)
	if err != nil {
		m.log.Warnf("monitor: pond %s: registry: %v (using size %.1f)", pondID, err, pond.SizeRai)
		m.metrics.RecordError("registry", "read_failed")
	}

	now := m.clock.Now().In(m.cfg.Location)
	since, err := dosestate.ElapsedAll(ctx, m.state, pondID, now)
	if err != nil {
		m.log.Warnf("monitor: pond %s: dose history: %v", pondID, err)
		m.metrics.RecordError("state", "read_failed")
		return Decision{PondID: pondID}
	}

	dec := m.rules.Evaluate(Input{
		Pond:       pond,
		Reading:    reading,
		WaterLabel: label,
		SinceLast:  since,
		Now:        now,
	})
	m.metrics.RecordEvaluation(trigger)
	m.log.Infof("monitor: [%s] pond=%s size=%.2f rai ph=%.2f temp=%.1f do=%.1f label=%q at %s -> rounds=%v reasons=%v",
		trigger, pondID, pond.SizeRai, reading.PH, reading.Temperature, reading.DO, label,
		now.Format("2006-01-02 15:04"), dec.Rotations, dec.Reasons)

	if !dec.AnyDosed {
		return dec
	}

	err = m.sender.Dispatch(dec)
	if err != nil {
		m.log.Warnf("monitor: pond %s: %v", pondID, err)
		m.metrics.RecordDispatch("failed", dec)
		if !m.cfg.RecordOnPublishFailure {
			return dec
		}
	} else {
		m.metrics.RecordDispatch("ok", dec)
	}

	for _, s := range dec.Dosed() {
		if err := m.state.RecordDose(ctx, pondID, s, now); err != nil {
			m.log.Warnf("monitor: pond %s: record %s dose: %v", pondID, s, err)
			m.metrics.RecordError("state", "write_failed")
		}
	}
	return dec
}

func (m *Monitor) lockPond(pondID string) func() {
	m.locksMu.Lock()
	mu, ok := m.pondLocks[pondID]
	if !ok {
		mu = &sync.Mutex{}
		m.pondLocks[pondID] = mu
	}
	m.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}
