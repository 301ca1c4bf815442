package playhead

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidBlock = errors.New("invalid timeline block")

// Block is a time-boxed motion segment. Start and Duration are seconds.
type Block struct {
	ID       string  `json:"id" yaml:"id"`
	Motion   string  `json:"motion" yaml:"motion"`
	Start    float64 `json:"start" yaml:"start"`
	Duration float64 `json:"duration" yaml:"duration"`
}

func (b Block) End() float64 { return b.Start + b.Duration }

// Contains reports whether t lies in [Start, Start+Duration).
func (b Block) Contains(t float64) bool {
	return t >= b.Start && t < b.End()
}

func (b Block) Validate() error {
	switch {
	case b.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidBlock)
	case b.Start < 0:
		return fmt.Errorf("%w: %s starts before 0", ErrInvalidBlock, b.ID)
	case b.Duration <= 0:
		return fmt.Errorf("%w: %s has non-positive duration", ErrInvalidBlock, b.ID)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
