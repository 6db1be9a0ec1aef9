package model

import (
	"github.com/LeonardoBeccarini/pond_doser/internal/model/entities"
	"github.com/LeonardoBeccarini/pond_doser/internal/model/messages"
)

// Aliases exposing the shared types to the services.

type (
	SensorReading    = messages.SensorReading
	WaterColorSample = messages.WaterColorSample
	DoseCommand      = messages.DoseCommand
	PondAttributes   = entities.PondAttributes
	Substance        = entities.Substance
)

const (
	Probiotic     = entities.Probiotic
	CaCO3         = entities.CaCO3
	MgSO4         = entities.MgSO4
	GreenExtract  = entities.GreenExtract
	NumSubstances = entities.NumSubstances

	DefaultPondSizeRai = entities.DefaultPondSizeRai
)

var (
	Substances     = entities.Substances
	ParseSubstance = entities.ParseSubstance
	DefaultPond    = entities.DefaultPond
)
