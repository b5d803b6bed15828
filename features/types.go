package features

import (
	"fmt"
	"strings"
)

// AccessTier is the access level a feature requires.
type AccessTier int

const (
	Public AccessTier = iota
	Demo
	Authenticated
	Premium
)

func (t AccessTier) String() string {
	switch t {
	case Public:
		return "public"
	case Demo:
		return "demo"
	case Authenticated:
		return "authenticated"
	case Premium:
		return "premium"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts the string form of a tier.
func ParseTier(s string) (AccessTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return Public, nil
	case "demo":
		return Demo, nil
	case "authenticated", "auth":
		return Authenticated, nil
	case "premium":
		return Premium, nil
	}
	return 0, fmt.Errorf("unknown access tier %q", s)
}

func (t AccessTier) MarshalText() ([]byte, error) {
	switch t {
	case Public, Demo, Authenticated, Premium:
		return []byte(t.String()), nil
	}
	return nil, fmt.Errorf("unknown access tier %d", int(t))
}

func (t *AccessTier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// DemoLimits are the usage caps applied to a demo-tier feature.
type DemoLimits struct {
	MaxGenerations     int  `json:"max_generations" yaml:"max_generations"`
	MaxDurationSeconds *int `json:"max_duration_seconds,omitempty" yaml:"max_duration_seconds,omitempty"`
	MaxResolution      *int `json:"max_resolution,omitempty" yaml:"max_resolution,omitempty"`
	WatermarkRequired  bool `json:"watermark_required" yaml:"watermark_required"`
}

// Descriptor is the static access rule for one feature.
// Demo is set only when Tier is Demo.
type Descriptor struct {
	ID   string      `json:"id" yaml:"id"`
	Tier AccessTier  `json:"access_tier" yaml:"access_tier"`
	Demo *DemoLimits `json:"demo_limits,omitempty" yaml:"demo_limits,omitempty"`
}

// Gated reports whether the quota gate applies to this feature.
func (d Descriptor) Gated() bool { return d.Tier == Demo && d.Demo != nil }

func (d Descriptor) clone() Descriptor {
	out := d
	if d.Demo != nil {
		lim := *d.Demo
		if d.Demo.MaxDurationSeconds != nil {
			v := *d.Demo.MaxDurationSeconds
			lim.MaxDurationSeconds = &v
		}
		if d.Demo.MaxResolution != nil {
			v := *d.Demo.MaxResolution
			lim.MaxResolution = &v
		}
		out.Demo = &lim
	}
	return out
}
