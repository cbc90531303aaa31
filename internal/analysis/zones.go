package analysis

import (
	"math"
	"sort"
)

// ZoneKind labels a price zone by the role it plays relative to price.
type ZoneKind string

const (
	ZoneSupport    ZoneKind = "support"
	ZoneResistance ZoneKind = "resistance"
)

// ZoneStrength grades a zone by how many swings have touched it.
type ZoneStrength string

const (
	ZoneStrong   ZoneStrength = "strong"   // 4+ touches
	ZoneModerate ZoneStrength = "moderate" // 2-3 touches
	ZoneWeak     ZoneStrength = "weak"     // single touch
)

// Zone is a horizontal price area built from clustered swing points. Price is
// pinned to the earliest swing that seeded the cluster; later touches raise
// the touch count without moving the zone. Pinning keeps clustering
// deterministic for a given swing order.
type Zone struct {
	Price       float64
	Kind        ZoneKind
	Strength    ZoneStrength
	Touches     int
	FirstTouch  int64 // Unix milliseconds
	LastTouch   int64
	TouchPrices []float64
}

// AggregateZones clusters swing points into zones. A swing joins an existing
// zone when its price deviates from the zone's pinned price by strictly less
// than tolerancePct percent. Swings are processed in timestamp order so the
// result is deterministic for a given input. Zones come back sorted by touch
// count descending, ties broken by most recent last touch first, since
// downstream entry logic prefers the strongest and freshest structure.
func AggregateZones(swings []SwingPoint, kind ZoneKind, tolerancePct float64) []Zone {
	if len(swings) == 0 {
		return nil
	}
	if tolerancePct <= 0 {
		tolerancePct = 0.1
	}

	ordered := make([]SwingPoint, len(swings))
	copy(ordered, swings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	var zones []Zone
	for _, s := range ordered {
		matched := -1
		for i := range zones {
			devPct := math.Abs(s.Price-zones[i].Price) / zones[i].Price * 100
			if devPct < tolerancePct {
				matched = i
				break
			}
		}
		if matched >= 0 {
			z := &zones[matched]
			z.Touches++
			z.LastTouch = s.Timestamp
			z.TouchPrices = append(z.TouchPrices, s.Price)
			continue
		}
		zones = append(zones, Zone{
			Price:       s.Price,
			Kind:        kind,
			Touches:     1,
			FirstTouch:  s.Timestamp,
			LastTouch:   s.Timestamp,
			TouchPrices: []float64{s.Price},
		})
	}

	for i := range zones {
		zones[i].Strength = strengthForTouches(zones[i].Touches)
	}

	sort.SliceStable(zones, func(i, j int) bool {
		if zones[i].Touches != zones[j].Touches {
			return zones[i].Touches > zones[j].Touches
		}
		return zones[i].LastTouch > zones[j].LastTouch
	})
	return zones
}

func strengthForTouches(touches int) ZoneStrength {
	switch {
	case touches >= 4:
		return ZoneStrong
	case touches >= 2:
		return ZoneModerate
	default:
		return ZoneWeak
	}
}

// NearestZone returns the zone closest to price and its absolute distance.
// Returns false when zones is empty.
func NearestZone(zones []Zone, price float64) (Zone, float64, bool) {
	if len(zones) == 0 {
		return Zone{}, 0, false
	}
	best := zones[0]
	bestDist := math.Abs(price - best.Price)
	for _, z := range zones[1:] {
		d := math.Abs(price - z.Price)
		if d < bestDist {
			best = z
			bestDist = d
		}
	}
	return best, bestDist, true
}
