package domain

// DefaultHistorySize is the number of samples kept for the trend chart.
const DefaultHistorySize = 15

// HistoryBuffer keeps the most recent wave periods in chronological order,
// evicting the oldest once capacity is exceeded. It is owned by a single
// session and is not safe for concurrent use.
type HistoryBuffer struct {
	capacity int
	values   []float64
}

// NewHistoryBuffer creates a buffer holding up to capacity values. A
// non-positive capacity falls back to DefaultHistorySize.
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &HistoryBuffer{
		capacity: capacity,
		values:   make([]float64, 0, capacity+1),
	}
}

// Push appends value and returns a copy of the buffer, oldest first.
func (h *HistoryBuffer) Push(value float64) []float64 {
	h.values = append(h.values, value)
	if len(h.values) > h.capacity {
		n := copy(h.values, h.values[len(h.values)-h.capacity:])
		h.values = h.values[:n]
	}
	return h.Values()
}

// Values returns a copy of the buffer contents, oldest first.
func (h *HistoryBuffer) Values() []float64 {
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}

func (h *HistoryBuffer) Len() int { return len(h.values) }

func (h *HistoryBuffer) Cap() int { return h.capacity }
