// Package pitchplunge models a two degree of freedom wing section
// with a trailing-edge flap: plunge h, pitch α, flap deflection β as
// the control input. The state is [h, α, ḣ, α̇].
package pitchplunge

import (
	"errors"
	"fmt"
)

var ErrInvalidParams = errors.New("invalid parameters")

// Params of the wing section, SI units.
type Params struct {
	B       float64   `mapstructure:"b" yaml:"b"`               // semichord
	Span    float64   `mapstructure:"span" yaml:"span"`         // wing span
	MW      float64   `mapstructure:"m-w" yaml:"m-w"`           // wing mass
	MT      float64   `mapstructure:"m-t" yaml:"m-t"`           // total plunging mass
	CG      float64   `mapstructure:"cg" yaml:"cg"`             // center of mass, from the leading edge
	ICG     float64   `mapstructure:"i-cg" yaml:"i-cg"`         // pitch inertia without the offset term
	A       float64   `mapstructure:"a" yaml:"a"`               // elastic axis, in semichords from midchord
	CH      float64   `mapstructure:"c-h" yaml:"c-h"`           // plunge damping
	CAlpha  float64   `mapstructure:"c-alpha" yaml:"c-alpha"`   // pitch damping
	KH      float64   `mapstructure:"k-h" yaml:"k-h"`           // plunge stiffness
	KAlpha  []float64 `mapstructure:"k-alpha" yaml:"k-alpha"`   // pitch stiffness, polynomial in α
	Rho     float64   `mapstructure:"rho" yaml:"rho"`           // air density
	U       float64   `mapstructure:"u" yaml:"u"`               // free stream velocity
	CLAlpha float64   `mapstructure:"cl-alpha" yaml:"cl-alpha"` // lift slope
	CLBeta  float64   `mapstructure:"cl-beta" yaml:"cl-beta"`   // lift by flap
	CMBeta  float64   `mapstructure:"cm-beta" yaml:"cm-beta"`   // moment by flap

	// Nonlinear uses the whole polynomial of KAlpha, the linear
	// system only its constant term.
	Nonlinear bool `mapstructure:"nonlinear" yaml:"nonlinear"`
}

// Default returns the parameters of the Texas A&M wing section at
// a speed below flutter.
func Default() Params {
	return Params{
		B:       0.135,
		Span:    0.6,
		MW:      2.049,
		MT:      12.387,
		CG:      0.0873,
		ICG:     0.0517,
		A:       -0.6847,
		CH:      27.43,
		CAlpha:  0.036,
		KH:      2844.4,
		KAlpha:  []float64{6.833, 9.967, 667.685, 26.569, -5087.931},
		Rho:     1.225,
		U:       10,
		CLAlpha: 6.28,
		CLBeta:  3.358,
		CMBeta:  -0.635,
	}
}

// XAlpha is the offset of the center of mass behind the elastic
// axis, in semichords.
func (p Params) XAlpha() float64 {
	return (p.CG - (p.B + p.A*p.B)) / p.B
}

// IAlpha is the pitch inertia about the elastic axis.
func (p Params) IAlpha() float64 {
	x := p.XAlpha()
	return p.MW*x*x*p.B*p.B + p.ICG
}

// CMAlpha is the moment slope about the elastic axis.
func (p Params) CMAlpha() float64 {
	return (0.5 + p.A) * p.CLAlpha
}

// Stiffness is the pitch stiffness at angle α.
func (p Params) Stiffness(alpha float64) float64 {
	if !p.Nonlinear {
		return p.KAlpha[0]
	}
	// Horner.
	k := 0.
	for i := len(p.KAlpha) - 1; i >= 0; i-- {
		k = k*alpha + p.KAlpha[i]
	}
	return k
}

// Validate checks that the parameters describe a physical wing.
func (p Params) Validate() error {
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"b", p.B},
		{"span", p.Span},
		{"m-w", p.MW},
		{"m-t", p.MT},
		{"k-h", p.KH},
		{"rho", p.Rho},
	} {
		if !(c.value > 0) {
			return fmt.Errorf("%w: %s must be positive, got %v",
				ErrInvalidParams, c.name, c.value)
		}
	}
	if len(p.KAlpha) == 0 || !(p.KAlpha[0] > 0) {
		return fmt.Errorf("%w: k-alpha must start with a positive constant, got %v",
			ErrInvalidParams, p.KAlpha)
	}
	if p.MT < p.MW {
		return fmt.Errorf("%w: total mass %v is less than wing mass %v",
			ErrInvalidParams, p.MT, p.MW)
	}
	if p.U < 0 || p.CH < 0 || p.CAlpha < 0 {
		return fmt.Errorf("%w: speed and damping must be non-negative", ErrInvalidParams)
	}
	return nil
}
