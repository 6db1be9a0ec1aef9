package dosing_controller

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/LeonardoBeccarini/pond_doser/internal/model"
)

// rulesFile is the YAML layout of RULES_FILE. Omitted keys keep defaults.
//
//	ph_low: 6.8
//	temp_high: 30
//	rules:
//	  caco3:
//	    cooldown: 8h
//	    window: any
//	  probiotic:
//	    cooldown: 7d
//	    amount_per_rai: 5
type rulesFile struct {
	PHLow    *float64                 `yaml:"ph_low"`
	TempHigh *float64                 `yaml:"temp_high"`
	Rules    map[string]ruleOverrides `yaml:"rules"`
}

type ruleOverrides struct {
	Cooldown     string   `yaml:"cooldown"`
	Window       string   `yaml:"window"`
	AmountPerRai *float64 `yaml:"amount_per_rai"`
	Enabled      *bool    `yaml:"enabled"`
}

// LoadRuleSet returns the defaults overridden by the YAML file at path.
// An empty path returns the defaults.
func LoadRuleSet(path string) (RuleSet, error) {
	rs := DefaultRuleSet()
	if strings.TrimSpace(path) == "" {
		return rs, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return rs, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRuleSet(b)
}

func ParseRuleSet(b []byte) (RuleSet, error) {
	rs := DefaultRuleSet()
	var f rulesFile
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return rs, fmt.Errorf("parse rules file: %w", err)
	}
	if f.PHLow != nil {
		rs.PHLow = *f.PHLow
	}
	if f.TempHigh != nil {
		rs.TempHigh = *f.TempHigh
	}
	for name, o := range f.Rules {
		s, ok := model.ParseSubstance(name)
		if !ok {
			return rs, fmt.Errorf("rules file: unknown substance %q", name)
		}
		rule := &rs.Rules[s.Channel()]
		if o.Cooldown != "" {
			d, err := parseCooldown(o.Cooldown)
			if err != nil {
				return rs, fmt.Errorf("rules file: %s cooldown: %w", name, err)
			}
			rule.Cooldown = d
		}
		if o.Window != "" {
			w, err := parseWindow(o.Window)
			if err != nil {
				return rs, fmt.Errorf("rules file: %s: %w", name, err)
			}
			rule.Window = w
		}
		if o.AmountPerRai != nil {
			if *o.AmountPerRai < 0 {
				return rs, fmt.Errorf("rules file: %s amount_per_rai must be >= 0", name)
			}
			rule.AmountPerRai = *o.AmountPerRai
		}
		if o.Enabled != nil {
			rule.Enabled = *o.Enabled
		}
	}
	return rs, nil
}

// parseCooldown accepts Go durations plus a whole-day suffix ("7d").
func parseCooldown(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func parseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any", "always":
		return WindowAnyTime, nil
	case "morning_evening", "morning-evening":
		return WindowMorningEvening, nil
	case "evening":
		return WindowEvening, nil
	}
	return 0, fmt.Errorf("unknown window %q", s)
}
