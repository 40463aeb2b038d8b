//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/sensor-gateway/internal/gateway"
)

// RealIndicator drives an RGB LED through the Linux GPIO character device.
type RealIndicator struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
}

// NewRealIndicator requests the red, green and blue lines on chip as
// outputs, initially off.
func NewRealIndicator(chip string, red, green, blue int) (*RealIndicator, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	lines, err := c.RequestLines([]int{red, green, blue},
		gpiocdev.AsOutput(0, 0, 0),
		gpiocdev.WithConsumer("sensor-gateway"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request led lines %d,%d,%d: %w", red, green, blue, err)
	}

	return &RealIndicator{chip: c, lines: lines}, nil
}

// Show lights the colour for state.
func (r *RealIndicator) Show(state gateway.NodeState) error {
	c := ColourFor(state)
	if err := r.lines.SetValues([]int{bit(c.Red), bit(c.Green), bit(c.Blue)}); err != nil {
		return fmt.Errorf("set led lines: %w", err)
	}
	return nil
}

// Close switches the LED off and releases GPIO resources.
// The lines are returned to input with pull-down (matching Pi boot defaults)
// before closing.
func (r *RealIndicator) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.SetValues([]int{0, 0, 0}); err != nil {
			errs = append(errs, fmt.Errorf("switch led off: %w", err))
		}
		if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure led lines: %w", err))
		}
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close led lines: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func bit(on bool) int {
	if on {
		return 1
	}
	return 0
}
