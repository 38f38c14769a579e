package bus

import (
	"time"

	"github.com/rileyhilliard/ramwatch/internal/events"
)

// Observer receives bus activity for metrics. Implementations must be
// safe for concurrent use; Delivered and Failed are called from handler
// goroutines.
type Observer interface {
	Published(t events.Type)
	Saturated(t events.Type)
	Delivered(t events.Type, handler string, took time.Duration)
	Failed(t events.Type, handler string)
	Dropped(n int)
	QueueDepth(n int)
}

type nopObserver struct{}

func (nopObserver) Published(events.Type)                        {}
func (nopObserver) Saturated(events.Type)                        {}
func (nopObserver) Delivered(events.Type, string, time.Duration) {}
func (nopObserver) Failed(events.Type, string)                   {}
func (nopObserver) Dropped(int)                                  {}
func (nopObserver) QueueDepth(int)                               {}
