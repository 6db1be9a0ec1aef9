package dosing_controller

import "math"

// Doser geometry: one powder rotation fills a cylinder of radius and
// height 6.5 cm at a bulk density of 0.8 g/cm³.
const (
	powderRadiusCm = 6.5
	powderHeightCm = 6.5
	powderDensity  = 0.8

	// LiquidMlPerRotation is the volume one liquid-channel rotation releases.
	LiquidMlPerRotation = 750.0
)

var powderWeightPerRotation = math.Pi * powderRadiusCm * powderRadiusCm * powderHeightCm * powderDensity

// PowderWeightPerRotation returns grams per powder rotation (~862.7 g).
func PowderWeightPerRotation() float64 { return powderWeightPerRotation }

// PowderRotations converts grams of powder to rotations. Rounding is left
// to the caller.
func PowderRotations(grams float64) float64 { return grams / powderWeightPerRotation }

// LiquidRotations converts millilitres of liquid to rotations.
func LiquidRotations(ml float64) float64 { return ml / LiquidMlPerRotation }
