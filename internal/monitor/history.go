package monitor

import "sync"

// DefaultHistorySize is the number of readings kept for the sparkline.
const DefaultHistorySize = 120

// History keeps recent RAM percentages in a ring buffer.
type History struct {
	mu  sync.RWMutex
	buf *ringBuffer
}

// ringBuffer is a fixed-size circular buffer for float64 values.
type ringBuffer struct {
	data  []float64
	head  int
	count int
	size  int
}

// NewHistory creates a history holding up to size readings.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: newRingBuffer(size)}
}

// Push records a reading.
func (h *History) Push(percent float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf.push(percent)
}

// Last returns up to count readings, oldest first.
func (h *History) Last(count int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buf.getLast(count)
}

// Count returns how many readings are stored.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buf.count
}

// Peak returns the highest stored reading, or 0 when empty.
func (h *History) Peak() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	peak := 0.0
	for _, v := range h.buf.getLast(h.buf.count) {
		if v > peak {
			peak = v
		}
	}
	return peak
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		data: make([]float64, size),
		size: size,
	}
}

func (r *ringBuffer) push(value float64) {
	r.data[r.head] = value
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// getLast returns the last count values in chronological order.
// head is the next write position, so the newest value sits at head-1.
func (r *ringBuffer) getLast(count int) []float64 {
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}

	result := make([]float64, count)
	start := (r.head - count + r.size) % r.size
	for i := 0; i < count; i++ {
		result[i] = r.data[(start+i)%r.size]
	}
	return result
}
