package usecase

// Default event-log capacities.
const (
	SignalLogCapacity = 50
	TradeLogCapacity  = 50
	ErrorLogCapacity  = 20
)

// RingLog is a fixed-capacity, newest-first event log with FIFO eviction:
// when full, the oldest entry is dropped regardless of importance. It is not
// synchronized; callers hold their own lock.
type RingLog[T any] struct {
	capacity int
	entries  []T
}

func NewRingLog[T any](capacity int) *RingLog[T] {
	return &RingLog[T]{capacity: capacity}
}

// Push prepends an entry, evicting the oldest when over capacity.
func (l *RingLog[T]) Push(entry T) {
	l.entries = append([]T{entry}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

// Items returns a copy of the entries, newest first.
func (l *RingLog[T]) Items() []T {
	out := make([]T, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *RingLog[T]) Len() int {
	return len(l.entries)
}
