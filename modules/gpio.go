package modules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const gpioConsumer = "quorum-wallet"

// GPIOPressSource detects presses from rising edges on a GPIO character
// device line. An active-low button is pulled up and reads active when
// pulled to ground.
type GPIOPressSource struct {
	chip      string
	offset    int
	activeLow bool
	debounce  time.Duration

	request func(handler gpiocdev.EventHandler) (io.Closer, error)
}

// NewGPIOPressSource creates a press source for line offset on chip, e.g.
// "gpiochip0". A zero debounce disables debouncing.
func NewGPIOPressSource(chip string, offset int, activeLow bool, debounce time.Duration) *GPIOPressSource {
	g := &GPIOPressSource{chip: chip, offset: offset, activeLow: activeLow, debounce: debounce}
	g.request = g.requestLine
	return g
}

func (g *GPIOPressSource) requestLine(handler gpiocdev.EventHandler) (io.Closer, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(gpioConsumer),
		gpiocdev.AsInput,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(handler),
	}
	if g.activeLow {
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithPullDown)
	}
	if g.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(g.debounce))
	}
	return gpiocdev.RequestLine(g.chip, g.offset, opts...)
}

// WaitForPress returns on the next released-to-pressed edge. A button
// already held down when called must be released first.
func (g *GPIOPressSource) WaitForPress(ctx context.Context) error {
	presses := make(chan struct{}, 1)
	line, err := g.request(func(evt gpiocdev.LineEvent) {
		if evt.Type != gpiocdev.LineEventRisingEdge {
			return
		}
		select {
		case presses <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("failed to request %s line %d: %w", g.chip, g.offset, err)
	}
	defer line.Close()

	select {
	case <-presses:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("press window elapsed")
		}
		return ctx.Err()
	}
}
