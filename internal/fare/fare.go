// Package fare computes trip fare estimates. The calculation is a pure
// function of distance, duration and ride type; surge is a fixed 1.0
// multiplier until dynamic pricing ships.
package fare

import (
	"math"

	"github.com/example/taxi-backend/internal/models"
)

const (
	BaseFare      = 2.50
	PerMinuteRate = 0.15
	ServiceFee    = 1.00
	TaxRate       = 0.08
	SurgeFactor   = 1.0
)

// Breakdown itemizes a fare estimate. Every derived field is rounded to
// two decimals at the field itself, so the parts shown to the client add
// up exactly.
type Breakdown struct {
	BaseFare      float64 `json:"baseFare"`
	DistanceFare  float64 `json:"distanceFare"`
	TimeFare      float64 `json:"timeFare"`
	Subtotal      float64 `json:"subtotal"`
	SurgeFactor   float64 `json:"surgeFactor"`
	FareBeforeTax float64 `json:"fareBeforeTax"`
	Tax           float64 `json:"tax"`
	ServiceFee    float64 `json:"serviceFee"`
	TotalFare     float64 `json:"totalFare"`
}

// PerKmRate returns the distance rate for a ride type.
func PerKmRate(rideType models.RideType) float64 {
	switch rideType {
	case models.RideTypePremium:
		return 2.00
	case models.RideTypeShared:
		return 0.80
	default:
		return 1.20
	}
}

// Estimate computes the fare for a trip of distanceKm kilometers and
// durationMins minutes.
func Estimate(distanceKm, durationMins float64, rideType models.RideType) Breakdown {
	distanceFare := round2(distanceKm * PerKmRate(rideType))
	timeFare := round2(durationMins * PerMinuteRate)
	subtotal := round2(BaseFare + distanceFare + timeFare)
	beforeTax := round2(subtotal * SurgeFactor)
	tax := round2(beforeTax * TaxRate)
	total := round2(beforeTax + tax + ServiceFee)

	return Breakdown{
		BaseFare:      BaseFare,
		DistanceFare:  distanceFare,
		TimeFare:      timeFare,
		Subtotal:      subtotal,
		SurgeFactor:   SurgeFactor,
		FareBeforeTax: beforeTax,
		Tax:           tax,
		ServiceFee:    ServiceFee,
		TotalFare:     total,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
