package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

var base = time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)

// writeAt writes a file and sets its modification time.
func writeAt(t *testing.T, dir, name, body string, mtime time.Time) {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

func TestFileSensorStore(t *testing.T) {
	dir := t.TempDir()
	writeAt(t, dir, "sensor_a.json", `{"pond_id":1,"ph":6.5,"temperature":31,"do":4}`, base)
	writeAt(t, dir, "sensor_b.json", `{"pond_id":"1","ph":"6.6","temperature":31,"do":4}`, base.Add(time.Minute))
	writeAt(t, dir, "sensor_c.json", `{"pond_id":2}`, base.Add(2*time.Minute))
	writeAt(t, dir, "sensor_d.json", `{not json`, base.Add(3*time.Minute))
	writeAt(t, dir, "other.json", `{"pond_id":9}`, base)

	st := NewFileSensorStore(dir, nil, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	ids, err := st.PondIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	recent, err := st.Recent(ctx, "1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "sensor_b.json", recent[0].ID, "newest first")
	assert.InDelta(t, 6.6, recent[0].PH, 1e-9)
	assert.Equal(t, "sensor_a.json", recent[1].ID)

	recent, err = st.Recent(ctx, "2", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 7.0, recent[0].PH, "missing fields take defaults")
	assert.Equal(t, 29.0, recent[0].Temperature)
	assert.Equal(t, 6.0, recent[0].DO)

	recent, err = st.Recent(ctx, "1", 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestFileSensorStoreMissingDir(t *testing.T) {
	st := NewFileSensorStore(filepath.Join(t.TempDir(), "nope"), nil, zaptest.NewLogger(t).Sugar())
	ids, err := st.PondIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileSensorStoreAppend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sensor")
	clk := clocktesting.NewFakeClock(base)
	st := NewFileSensorStore(dir, clk, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, model.SensorReading{PondID: "3", PH: 6.1, Temperature: 30.5, DO: 4.2}))
	assert.Error(t, st.Append(ctx, model.SensorReading{}))

	recent, err := st.Recent(ctx, "3", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.InDelta(t, 6.1, recent[0].PH, 1e-9)
	assert.True(t, base.Equal(recent[0].Timestamp), "zero timestamp is filled from the clock")

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	assert.Empty(t, matches)
}

func TestMemorySensorStore(t *testing.T) {
	st := NewMemorySensorStore()
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, st.Append(ctx, model.SensorReading{PondID: "1", PH: float64(i), Timestamp: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, st.Append(ctx, model.SensorReading{PondID: "2"}))
	assert.ErrorIs(t, st.Append(ctx, model.SensorReading{}), ErrEmptyPondID)

	ids, err := st.PondIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	recent, err := st.Recent(ctx, "1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, 5.0, recent[0].PH)
	assert.Equal(t, 1.0, recent[4].PH)
	assert.NotEqual(t, recent[0].ID, recent[1].ID)
}

func TestDirWaterColorSource(t *testing.T) {
	dir := t.TempDir()
	src := NewDirWaterColorSource(dir)
	ctx := context.Background()

	_, ok, err := src.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	writeAt(t, dir, "img_001.txt", "green (80%)\n", base)
	writeAt(t, dir, "img_002.txt", "clear (92%)\nextra line\n", base.Add(time.Minute))
	writeAt(t, dir, "notes.md", "ignored", base.Add(time.Hour))

	s, ok, err := src.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "img_002.txt"), s.SourcePath)
	assert.True(t, s.IsClear())
	assert.True(t, base.Add(time.Minute).Equal(s.ObservedAt))
}

func TestDirPondRegistry(t *testing.T) {
	dir := t.TempDir()
	reg := NewDirPondRegistry(dir)
	ctx := context.Background()

	writeAt(t, dir, "pond_1_20250101.json", `{"pond_id":1,"pond_size_rai":2.0,"initial_stock":1000}`, base)
	writeAt(t, dir, "pond_1_20250201.json", `{"pond_id":1,"pond_size_rai":3.5,"initial_stock":900,"date":"2025-02-01"}`, base.Add(time.Hour))
	writeAt(t, dir, "pond_10_20250101.json", `{"pond_id":10,"pond_size_rai":9}`, base.Add(2*time.Hour))
	writeAt(t, dir, "pond_2_x.json", `{"pond_size_rai":0}`, base)
	writeAt(t, dir, "pond_3_x.json", `broken`, base)

	attrs, ok, err := reg.Lookup(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3.5, attrs.SizeRai, "most recently modified record wins")
	assert.Equal(t, 900, attrs.InitialStock)
	assert.Equal(t, 2025, attrs.RegisteredAt.Year())

	attrs, ok, err = reg.Lookup(ctx, "2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.DefaultPondSizeRai, attrs.SizeRai)

	_, ok, err = reg.Lookup(ctx, "4")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = reg.Lookup(ctx, "3")
	assert.Error(t, err)

	_, _, err = reg.Lookup(ctx, "*")
	assert.Error(t, err)
}

func TestSizeOf(t *testing.T) {
	dir := t.TempDir()
	writeAt(t, dir, "pond_1_a.json", `{"pond_size_rai":2}`, base)
	writeAt(t, dir, "pond_3_a.json", `broken`, base)
	reg := NewDirPondRegistry(dir)
	ctx := context.Background()

	attrs, err := SizeOf(ctx, reg, "1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, attrs.SizeRai)

	attrs, err = SizeOf(ctx, reg, "7")
	require.NoError(t, err)
	assert.Equal(t, 1.0, attrs.SizeRai)

	attrs, err = SizeOf(ctx, reg, "3")
	assert.Error(t, err)
	assert.Equal(t, 1.0, attrs.SizeRai)

	attrs, err = SizeOf(ctx, nil, "3")
	require.NoError(t, err)
	assert.Equal(t, "3", attrs.PondID)
}

func TestInfluxQueries(t *testing.T) {
	cfg := InfluxConfig{Bucket: "sensors", Measurement: DefaultMeasurement, Lookback: time.Hour}

	q := recentQuery(cfg, "1", 5)
	assert.Contains(t, q, `from(bucket: "sensors")`)
	assert.Contains(t, q, `range(start: -3600s)`)
	assert.Contains(t, q, `r.pond_id == "1"`)
	assert.Contains(t, q, `limit(n: 5)`)
	assert.Contains(t, q, `desc: true`)

	q = pondIDsQuery(cfg)
	assert.Contains(t, q, `tag: "pond_id"`)
	assert.Contains(t, q, `measurement: "pond_sensor"`)

	_, err := NewInfluxSensorStore(InfluxConfig{})
	assert.Error(t, err)
}
