package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func sample(t *testing.T, pct float64) events.Event {
	t.Helper()
	ev, err := events.NewSample("test", events.Usage{RAMPercent: pct}, time.Now())
	require.NoError(t, err)
	return ev
}

func startBus(t *testing.T, opts ...Option) *Bus {
	t.Helper()
	b := New(opts...)
	b.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = b.Stop(ctx)
	})
	return b
}

// recorder collects delivered events in arrival order.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) percents() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.RAMPercent()
	}
	return out
}

func TestPublish_DeliversToSubscribersOfType(t *testing.T) {
	b := startBus(t)

	var samples, highs recorder
	b.Subscribe(events.TypeSample, samples.handle)
	b.Subscribe(events.TypeRAMHigh, highs.handle)

	require.NoError(t, b.Publish(sample(t, 42)))

	assert.Eventually(t, func() bool { return samples.len() == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 0, highs.len())
}

func TestSubscribe_DuplicateRegistrationDeliversTwice(t *testing.T) {
	b := startBus(t)

	var rec recorder
	b.Subscribe(events.TypeSample, rec.handle)
	b.Subscribe(events.TypeSample, rec.handle)
	assert.Equal(t, 2, b.Subscribers(events.TypeSample))

	require.NoError(t, b.Publish(sample(t, 10)))

	assert.Eventually(t, func() bool { return rec.len() == 2 }, waitFor, 5*time.Millisecond)
}

func TestPublish_BeforeStartIsHeld(t *testing.T) {
	b := New()
	var rec recorder
	b.Subscribe(events.TypeSample, rec.handle, Serialized())

	require.NoError(t, b.Publish(sample(t, 1)))
	require.NoError(t, b.Publish(sample(t, 2)))
	assert.Equal(t, 2, b.Pending())

	b.Start()
	defer b.Stop(context.Background())

	assert.Eventually(t, func() bool { return rec.len() == 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []float64{1, 2}, rec.percents())
}

func TestDelivery_FailingHandlerIsIsolated(t *testing.T) {
	var (
		mu       sync.Mutex
		failures []HandlerError
	)
	log := logger.NewBufferLogger()
	b := startBus(t,
		WithLogger(log),
		WithErrorHandler(func(herr HandlerError) {
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, herr)
		}),
	)

	boom := errors.New("smtp down")
	var healthy recorder
	b.Subscribe(events.TypeSample, func(context.Context, events.Event) error { return boom }, WithName("email"))
	b.Subscribe(events.TypeSample, func(context.Context, events.Event) error { panic("nil map") }, WithName("csv"))
	b.Subscribe(events.TypeSample, healthy.handle, WithName("dashboard"))

	require.NoError(t, b.Publish(sample(t, 70)))
	require.NoError(t, b.Publish(sample(t, 71)))

	assert.Eventually(t, func() bool { return healthy.len() == 2 }, waitFor, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failures) == 4
	}, waitFor, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	var sawErr, sawPanic bool
	for _, f := range failures {
		switch f.Handler {
		case "email":
			sawErr = true
			assert.False(t, f.Panic)
			assert.ErrorIs(t, f, boom)
		case "csv":
			sawPanic = true
			assert.True(t, f.Panic)
			assert.Contains(t, f.Error(), "panicked")
		}
	}
	assert.True(t, sawErr)
	assert.True(t, sawPanic)
	assert.True(t, log.Contains("error", "smtp down"))
}

func TestRouting_FIFO(t *testing.T) {
	b := startBus(t)

	var rec recorder
	b.Subscribe(events.TypeSample, rec.handle, Serialized())

	want := make([]float64, 0, 100)
	for i := 0; i < 100; i++ {
		pct := float64(i)
		want = append(want, pct)
		require.NoError(t, b.Publish(sample(t, pct)))
	}

	assert.Eventually(t, func() bool { return rec.len() == 100 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, want, rec.percents())
}

func TestSerialized_NeverOverlaps(t *testing.T) {
	b := startBus(t)

	var active, maxActive, calls int32
	b.Subscribe(events.TypeSample, func(context.Context, events.Event) error {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&active, -1)
		atomic.AddInt32(&calls, 1)
		return nil
	}, Serialized())

	for i := 0; i < 20; i++ {
		require.NoError(t, b.Publish(sample(t, 50)))
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 20 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestPublish_DoesNotBlockOnSlowHandler(t *testing.T) {
	b := startBus(t)

	release := make(chan struct{})
	defer close(release)
	b.Subscribe(events.TypeSample, func(ctx context.Context, _ events.Event) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	var fast recorder
	b.Subscribe(events.TypeSample, fast.handle)

	ev := sample(t, 60)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			_ = b.Publish(ev)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Publish blocked behind a slow handler")
	}

	// The router keeps delivering to the other handler too.
	assert.Eventually(t, func() bool { return fast.len() == 50 }, waitFor, 5*time.Millisecond)
}

func TestPublish_Errors(t *testing.T) {
	t.Run("zero event", func(t *testing.T) {
		b := New()
		assert.ErrorIs(t, b.Publish(events.Event{}), ErrInvalidEvent)
	})

	t.Run("bounded queue saturates", func(t *testing.T) {
		b := New(WithQueueSize(2))
		require.NoError(t, b.Publish(sample(t, 1)))
		require.NoError(t, b.Publish(sample(t, 2)))

		err := b.Publish(sample(t, 3))
		assert.ErrorIs(t, err, ErrSaturated)
		assert.Equal(t, 2, b.Pending())
	})

	t.Run("after stop", func(t *testing.T) {
		b := New()
		b.Start()
		require.NoError(t, b.Stop(context.Background()))
		assert.ErrorIs(t, b.Publish(sample(t, 1)), ErrStopped)
	})
}

func TestStop_AbandonsQueuedEvents(t *testing.T) {
	log := logger.NewBufferLogger()
	obs := newCountingObserver()
	b := New(WithLogger(log), WithObserver(obs))

	var rec recorder
	b.Subscribe(events.TypeSample, rec.handle)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(sample(t, 1)))
	}

	require.NoError(t, b.Stop(context.Background()))

	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, 0, rec.len())
	assert.Equal(t, 3, obs.dropped())
	assert.True(t, log.Contains("warn", "abandoned 3 queued events"))

	// Start after Stop is a no-op.
	b.Start()
	assert.ErrorIs(t, b.Publish(sample(t, 1)), ErrStopped)
}

func TestStop_DeadlineCancelsHandlers(t *testing.T) {
	b := New()
	b.Start()

	entered := make(chan struct{})
	cancelled := make(chan struct{})
	b.Subscribe(events.TypeRestart, func(ctx context.Context, _ events.Event) error {
		close(entered)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	ev, err := events.NewEscalation(events.TypeRestart, "test",
		events.Escalation{Usage: events.Usage{RAMPercent: 90}}, time.Now())
	require.NoError(t, err)
	require.NoError(t, b.Publish(ev))

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("handler never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Stop(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(waitFor):
		t.Fatal("handler context was not cancelled")
	}
}

func TestStop_WaitsForInflightHandlers(t *testing.T) {
	b := New()
	b.Start()

	var finished atomic.Bool
	started := make(chan struct{})
	b.Subscribe(events.TypeSample, func(context.Context, events.Event) error {
		close(started)
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	require.NoError(t, b.Publish(sample(t, 5)))
	<-started

	require.NoError(t, b.Stop(context.Background()))
	assert.True(t, finished.Load())
}

func TestObserver_CountsActivity(t *testing.T) {
	obs := newCountingObserver()
	b := startBus(t, WithObserver(obs))

	b.Subscribe(events.TypeSample, func(context.Context, events.Event) error { return nil }, WithName("ok"))
	b.Subscribe(events.TypeSample, func(context.Context, events.Event) error { return errors.New("x") }, WithName("bad"))

	require.NoError(t, b.Publish(sample(t, 5)))

	assert.Eventually(t, func() bool {
		return obs.delivered("ok") == 1 && obs.failed("bad") == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, obs.published())
}

func TestObserver_QueueDepthSettlesAtZero(t *testing.T) {
	obs := newCountingObserver()
	b := startBus(t, WithObserver(obs))
	rec := &recorder{}
	b.Subscribe(events.TypeSample, rec.handle, Serialized())

	const publishers, each = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				assert.NoError(t, b.Publish(sample(t, 5)))
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return rec.len() == publishers*each
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, 0, obs.lastDepth())
}

type countingObserver struct {
	mu         sync.Mutex
	pub        int
	drop       int
	depth      int
	deliveries map[string]int
	failures   map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{deliveries: map[string]int{}, failures: map[string]int{}}
}

func (o *countingObserver) Published(events.Type) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pub++
}

func (o *countingObserver) Saturated(events.Type) {}

func (o *countingObserver) Delivered(_ events.Type, h string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deliveries[h]++
}

func (o *countingObserver) Failed(_ events.Type, h string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[h]++
}

func (o *countingObserver) Dropped(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drop += n
}

func (o *countingObserver) QueueDepth(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.depth = n
}

func (o *countingObserver) lastDepth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.depth
}

func (o *countingObserver) published() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pub
}

func (o *countingObserver) dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.drop
}

func (o *countingObserver) delivered(h string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.deliveries[h]
}

func (o *countingObserver) failed(h string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failures[h]
}
