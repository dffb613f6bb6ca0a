package cache

import (
	"context"
	"time"

	"minimg/internal/decode"
)

// DefaultPollInterval is the tick used by Pump
const DefaultPollInterval = 30 * time.Millisecond

// Sink displays resolved images. Calls are fire-and-forget for the loader.
type Sink interface {
	Show(identity string, img *decode.Image)
	ShowError(identity string, err error)
}

// Pump polls l every tick and forwards each result to sink until ctx is done
// or the loader stops. It returns the loader's fatal error, if any.
func Pump(ctx context.Context, l *Loader, sink Sink, tick time.Duration) error {
	if tick <= 0 {
		tick = DefaultPollInterval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.Done():
			deliver(l, sink)
			return l.Err()
		case <-ticker.C:
			deliver(l, sink)
		}
	}
}

func deliver(l *Loader, sink Sink) {
	res, ok := l.Poll()
	if !ok {
		return
	}
	if res.OK() {
		sink.Show(res.Identity(), res.Image)
		return
	}
	sink.ShowError(res.Identity(), res.Err)
}
