package geo

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/bazario/bazario-backend/pkg/money"
)

// Mean Earth radius in kilometers (IUGG).
const earthRadiusKm = 6371.0088

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// DistanceKm returns the great-circle distance between two points using
// the haversine formula.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// FeeParams holds the delivery fee schedule.
type FeeParams struct {
	BaseFee  decimal.Decimal
	PerKmFee decimal.Decimal
}

// DeliveryFee prices a delivery leg: base plus per-kilometer distance,
// capped at half the order subtotal so the fee never dwarfs a small
// order. Quantized to two decimal places.
func DeliveryFee(params FeeParams, distanceKm float64, subtotal decimal.Decimal) decimal.Decimal {
	distance := decimal.NewFromFloat(distanceKm)
	fee := params.BaseFee.Add(params.PerKmFee.Mul(distance))
	maxFee := subtotal.Div(decimal.NewFromInt(2))
	if fee.GreaterThan(maxFee) {
		// The cap itself rounds down: half a cent of rounding must not
		// push the fee past half the subtotal.
		return maxFee.RoundDown(2)
	}
	return money.Quantize(fee)
}
