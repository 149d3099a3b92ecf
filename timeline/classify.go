package timeline

import (
	"errors"
	"fmt"
	"math"
)

// ThresholdMode selects how a block's online/offline decision is made
// from its samples. The legacy endpoints this replaces used three
// different rules; they survive here as explicit modes so a caller
// reproducing one of them has to opt in by name.
type ThresholdMode string

const (
	// ThresholdMajority marks a block online when at least half of
	// its observed samples are active. Default.
	ThresholdMajority ThresholdMode = "majority"

	// ThresholdFixed marks a block online when it has at least
	// MinActiveMinutes active samples, regardless of how many
	// samples were observed.
	ThresholdFixed ThresholdMode = "fixed"

	// ThresholdAny marks a block online on any active sample.
	ThresholdAny ThresholdMode = "any"
)

// Policy parameterizes block classification.
type Policy struct {
	Mode ThresholdMode

	// MinActiveMinutes applies only to ThresholdFixed.
	MinActiveMinutes int
}

// DefaultPolicy returns the canonical classification policy: online
// when at least 50% of the observed samples in a block are active.
func DefaultPolicy() Policy {
	return Policy{Mode: ThresholdMajority}
}

func (p Policy) Validate() error {
	switch p.Mode {
	case ThresholdMajority, ThresholdAny:
		return nil
	case ThresholdFixed:
		if p.MinActiveMinutes < 1 || p.MinActiveMinutes > MinutesPerBlock {
			return fmt.Errorf("fixed threshold requires 1..%d active minutes, got %d", MinutesPerBlock, p.MinActiveMinutes)
		}
		return nil
	case "":
		return errors.New("threshold mode is required")
	default:
		return fmt.Errorf("unknown threshold mode %q", p.Mode)
	}
}

// Classification is the aggregate result for one block.
type Classification struct {
	Status           BlockStatus
	ActiveMinutes    int
	TotalSnapshots   int
	OnlinePercentage int
}

// Classify decides a block's status from its samples. Each sample
// approximates one minute of observation (a sampling-rate assumption,
// not a true duration measurement). Empty blocks are no-data, which is
// distinct from observed-and-inactive (offline).
//
// Classify is a pure function: no clock, no ordering dependence.
func (p Policy) Classify(samples []Snapshot) Classification {
	c := Classification{TotalSnapshots: len(samples)}
	if len(samples) == 0 {
		c.Status = BlockNoData
		return c
	}

	for _, s := range samples {
		if s.Status == StatusActive {
			c.ActiveMinutes++
		}
	}
	c.OnlinePercentage = int(math.Round(float64(c.ActiveMinutes) / float64(c.TotalSnapshots) * 100))

	online := false
	switch p.Mode {
	case ThresholdAny:
		online = c.ActiveMinutes > 0
	case ThresholdFixed:
		online = c.ActiveMinutes >= p.MinActiveMinutes
	default: // ThresholdMajority
		online = float64(c.ActiveMinutes)/float64(c.TotalSnapshots) >= 0.5
	}

	if online {
		c.Status = BlockOnline
	} else {
		c.Status = BlockOffline
	}
	return c
}
