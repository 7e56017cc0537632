package clock

// Manual is a deterministic clock. Costs are added explicitly with Spend.
type Manual struct {
	used float64
	tick int64
}

func NewManual(tick int64) *Manual {
	return &Manual{tick: tick}
}

// Spend adds cost to the CPU used in the current slice.
func (m *Manual) Spend(cost float64) {
	m.used += cost
}

// SetTick moves to the given slice and resets the used counter.
func (m *Manual) SetTick(tick int64) {
	m.tick = tick
	m.used = 0
}

// Next moves to the following slice.
func (m *Manual) Next() int64 {
	m.SetTick(m.tick + 1)
	return m.tick
}

func (m *Manual) Used() float64 {
	return m.used
}

func (m *Manual) Tick() int64 {
	return m.tick
}
