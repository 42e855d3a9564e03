package counter

import (
	"strings"

	"github.com/nvr-ai/go-linecount/models"
	"github.com/pkg/errors"
)

// Policy selects how a detection in the band is recognised as a vehicle that
// was already counted on the previous frame.
type Policy int

const (
	// PolicyPreviousFrame compares each in-band detection against the band
	// members of the immediately preceding frame. A detection whose horizontal
	// center lies within Tolerance of any of them is a repeat. The comparison
	// set is then replaced with the current frame's band members.
	PolicyPreviousFrame Policy = iota
	// PolicyAlwaysCount never remembers band members between frames, so every
	// in-band detection on every frame is counted. A vehicle that stays in the
	// band for several frames is counted once per frame.
	PolicyAlwaysCount
)

var policyNames = map[Policy]string{
	PolicyPreviousFrame: "previous-frame",
	PolicyAlwaysCount:   "always-count",
}

// ErrUnknownPolicy is returned by ParsePolicy for an unrecognised name.
var ErrUnknownPolicy = errors.New("unknown dedup policy")

// String returns the policy name used in configuration.
func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return "unknown"
}

// ParsePolicy parses a policy name as produced by Policy.String.
//
// Arguments:
//   - name: "previous-frame" or "always-count", case-insensitive.
//
// Returns:
//   - Policy: The parsed policy.
//   - error: ErrUnknownPolicy if the name is not recognised.
func ParsePolicy(name string) (Policy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return PolicyPreviousFrame, errors.Wrapf(ErrUnknownPolicy, "%q", name)
}

// Config holds the counting band geometry and the dedup rule.
type Config struct {
	// BandDivisor places the line at height - height/BandDivisor.
	BandDivisor int `json:"band_divisor" yaml:"band_divisor"`
	// BandHalfHeight is the band half-height in pixels.
	BandHalfHeight int `json:"band_half_height" yaml:"band_half_height"`
	// Tolerance is the horizontal distance in pixels within which an in-band
	// detection matches a band member of the previous frame.
	Tolerance float32 `json:"tolerance" yaml:"tolerance"`
	// Policy is the dedup rule.
	Policy Policy `json:"policy" yaml:"policy"`
	// NumClasses is the length of the label list. Class ids outside
	// [0, NumClasses) are rejected.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
}

// DefaultConfig returns the band and dedup settings for the standard 80-class
// label list.
func DefaultConfig() Config {
	return Config{
		BandDivisor:    8,
		BandHalfHeight: 20,
		Tolerance:      50,
		Policy:         PolicyPreviousFrame,
		NumClasses:     models.DefaultClassSet().Len(),
	}
}

// Validate checks the configuration for values the counter cannot run with.
func (c Config) Validate() error {
	if c.BandDivisor <= 0 {
		return errors.Errorf("band divisor must be positive, got %d", c.BandDivisor)
	}
	if c.BandHalfHeight < 0 {
		return errors.Errorf("band half-height must not be negative, got %d", c.BandHalfHeight)
	}
	if c.Tolerance < 0 {
		return errors.Errorf("tolerance must not be negative, got %g", c.Tolerance)
	}
	if _, ok := policyNames[c.Policy]; !ok {
		return errors.Wrapf(ErrUnknownPolicy, "%d", int(c.Policy))
	}
	if c.NumClasses <= 0 {
		return errors.Errorf("class count must be positive, got %d", c.NumClasses)
	}
	return nil
}
