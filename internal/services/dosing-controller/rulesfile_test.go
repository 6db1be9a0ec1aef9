package dosing_controller

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

func TestLoadRuleSetDefaults(t *testing.T) {
	rs, err := LoadRuleSet("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRuleSet(), rs)
}

func TestParseRuleSet(t *testing.T) {
	rs, err := ParseRuleSet([]byte(`
ph_low: 7.0
rules:
  caco3:
    cooldown: 12h
    window: any
  probiotic:
    cooldown: 3d
    amount_per_rai: 900
  mgso4:
    enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, 7.0, rs.PHLow)
	assert.Equal(t, 30.0, rs.TempHigh)
	assert.Equal(t, 12*time.Hour, rs.Rules[model.CaCO3].Cooldown)
	assert.Equal(t, WindowAnyTime, rs.Rules[model.CaCO3].Window)
	assert.Equal(t, 72*time.Hour, rs.Rules[model.Probiotic].Cooldown)
	assert.Equal(t, 900.0, rs.Rules[model.Probiotic].AmountPerRai)
	assert.False(t, rs.Rules[model.MgSO4].Enabled)
	assert.Equal(t, DefaultRuleSet().Rules[model.GreenExtract], rs.Rules[model.GreenExtract])
}

func TestParseRuleSetErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown substance": "rules:\n  salt:\n    cooldown: 1h\n",
		"bad cooldown":      "rules:\n  caco3:\n    cooldown: soon\n",
		"negative days":     "rules:\n  caco3:\n    cooldown: -2d\n",
		"bad window":        "rules:\n  caco3:\n    window: noon\n",
		"negative amount":   "rules:\n  caco3:\n    amount_per_rai: -1\n",
		"unknown key":       "ph_high: 9\n",
	} {
		_, err := ParseRuleSet([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadRuleSetFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(p, []byte("temp_high: 31.5\n"), 0o644))
	rs, err := LoadRuleSet(p)
	require.NoError(t, err)
	assert.Equal(t, 31.5, rs.TempHigh)

	_, err = LoadRuleSet(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
