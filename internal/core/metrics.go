package core

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// EffectiveDistance returns the km a trip counts for. It tries, in order,
// the explicitly recorded distance, the odometer delta and the planned
// distance. Absent, negative or non-finite values fall through to the next
// rung, so the result is always a finite number >= 0.
func EffectiveDistance(t Trip) float64 {
	if t.Distance != nil && usableKm(*t.Distance) {
		return *t.Distance
	}
	if t.StartOdometer != nil && t.EndOdometer != nil {
		if d := *t.EndOdometer - *t.StartOdometer; usableKm(d) {
			return d
		}
	}
	if t.PlannedDistance != nil && usableKm(*t.PlannedDistance) {
		return *t.PlannedDistance
	}
	return 0
}

func usableKm(km float64) bool {
	return km >= 0 && !math.IsInf(km, 0)
}

// EstimateFuelCost returns consumption * distance / 100 * unit price.
// The second result is false when the cost cannot be estimated: no distance,
// no car, no price, or a car without a consumption figure. NaN and infinite
// distances cannot be estimated either.
func EstimateFuelCost(distanceKm float64, car *Car, price *FuelPrice) (float64, bool) {
	if !(distanceKm > 0) || math.IsInf(distanceKm, 0) || car == nil || price == nil || car.Consumption <= 0 {
		return 0, false
	}
	unit := price.UnitPrice(car.FuelType)
	if unit <= 0 {
		return 0, false
	}
	return car.Consumption * distanceKm / 100 * unit, true
}

// UnitPrice picks the price matching ft. Unknown fuel types use the petrol
// price.
func (p FuelPrice) UnitPrice(ft FuelType) float64 {
	switch ft {
	case Diesel:
		return p.Diesel
	case LPG:
		return p.LPG
	case Electric:
		return p.Electric
	default:
		return p.Petrol
	}
}

// SelectLatestPrice returns the price with the latest period, or nil for an
// empty list. Among equal periods the last one in slice order wins.
func SelectLatestPrice(prices []FuelPrice) *FuelPrice {
	var latest *FuelPrice
	for i := range prices {
		if latest == nil || !prices[i].Period.Before(latest.Period) {
			latest = &prices[i]
		}
	}
	return latest
}

var fuelAliases = map[string]FuelType{
	"petrol":     Petrol,
	"gasoline":   Petrol,
	"benzin":     Petrol,
	"diesel":     Diesel,
	"dizel":      Diesel,
	"gazolaj":    Diesel,
	"lpg":        LPG,
	"autogaz":    LPG,
	"gaz":        LPG,
	"electric":   Electric,
	"elektromos": Electric,
	"ev":         Electric,
}

// ParseFuelType maps free-form fuel names ("Dízel", "benzin", "LPG") to a
// FuelType. Matching ignores case and accents. Unrecognised names are
// returned verbatim so UnitPrice can fall back to petrol.
func ParseFuelType(s string) FuelType {
	key := foldAccents(strings.ToLower(strings.TrimSpace(s)))
	if ft, ok := fuelAliases[key]; ok {
		return ft
	}
	return FuelType(key)
}

func foldAccents(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if r >= 0x300 && r <= 0x36f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
