// Package ephemeris carries an optional ground-track position into
// beacon telemetry, a feature the distilled spec dropped but the
// original system's payload telemetry included. No orbit propagation is
// implemented here: PositionProvider is supplied by the caller (a fixed
// position, or one driven by an external propagator).
package ephemeris

import (
	"fmt"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/tzneal/coordconv"

	"github.com/tcspecial/tcs/internal/wire"
)

// PositionProvider supplies the spacecraft's current geodetic position.
type PositionProvider interface {
	Position() (latDeg, lonDeg float64, ok bool)
}

// Fixed is a PositionProvider that never moves, useful for ground
// stations or static test payloads.
type Fixed struct {
	LatDeg, LonDeg float64
}

func (f Fixed) Position() (float64, float64, bool) { return f.LatDeg, f.LonDeg, true }

// Source renders a PositionProvider's current fix into the wire's
// EphemerisFix shape, additionally computing an MGRS string via
// coordconv the way the teacher's coordconv.go helper translates
// between hemisphere representations.
type Source struct {
	provider PositionProvider
}

// NewSource wraps provider. A nil provider yields no fixes (Fix returns
// nil, matching "no ephemeris configured").
func NewSource(provider PositionProvider) *Source {
	return &Source{provider: provider}
}

// Fix returns the current position as a wire.EphemerisFix, or nil when
// no provider is configured or the provider reports no fix available.
func (s *Source) Fix() *wire.EphemerisFix {
	if s == nil || s.provider == nil {
		return nil
	}

	lat, lon, ok := s.provider.Position()
	if !ok {
		return nil
	}

	fix := &wire.EphemerisFix{LatitudeDeg: lat, LongitudeDeg: lon}

	ll := s2.LatLng{Lat: AngleDeg(lat), Lng: AngleDeg(lon)}
	if mgrs, err := coordconv.DefaultMGRSConverter.ConvertFromGeodetic(ll, 5); err == nil {
		fix.MGRS = fmt.Sprint(mgrs)
	}

	return fix
}

// AngleDeg is a small helper mirroring the teacher's D2R-style
// conversions used alongside golang/geo/s1 angles.
func AngleDeg(deg float64) s1.Angle {
	return s1.Angle(deg * (3.14159265358979323846 / 180.0))
}
