// Package clock provides the readings the profiler measures with: a
// cumulative "CPU used in this slice" value and a monotonically increasing
// slice counter.
package clock

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Clock is the host surface consumed by the profiler.
//
// Used returns the CPU consumed so far in the current slice. It never
// decreases within a slice and may be reset between slices. Tick returns the
// current slice number.
type Clock interface {
	Used() float64
	Tick() int64
}

// Meter reads a cumulative CPU counter in milliseconds.
type Meter interface {
	Read() float64
}

// Slices is a host clock driven by Begin. Every call to Begin moves to the
// next slice and resets the baseline Used is measured from.
type Slices struct {
	meter    Meter
	tick     atomic.Int64
	baseline float64
}

// NewSlices returns a clock starting before the first slice. The first
// Begin call makes the tick 1 unless start says otherwise.
func NewSlices(meter Meter, start int64) *Slices {
	s := &Slices{meter: meter}
	s.tick.Store(start)
	return s
}

// Begin advances to the next slice and returns its tick.
func (s *Slices) Begin() int64 {
	s.baseline = s.meter.Read()
	return s.tick.Add(1)
}

func (s *Slices) Used() float64 {
	used := s.meter.Read() - s.baseline
	if used < 0 {
		return 0
	}
	return used
}

func (s *Slices) Tick() int64 {
	return s.tick.Load()
}

// Wall measures elapsed wall time. Hosts without a CPU meter use it the
// way a simulator would.
type Wall struct {
	start time.Time
}

func NewWall() *Wall {
	return &Wall{start: time.Now()}
}

func (w *Wall) Read() float64 {
	return float64(time.Since(w.start)) / float64(time.Millisecond)
}

// Process reads user and system CPU time of the current process.
type Process struct {
	proc *process.Process
}

func NewProcess() (*Process, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Process{proc: proc}, nil
}

// Read returns 0 when the times cannot be read, which Slices clamps into a
// non-decreasing reading.
func (p *Process) Read() float64 {
	times, err := p.proc.Times()
	if err != nil {
		return 0
	}
	return (times.User + times.System) * 1000
}
