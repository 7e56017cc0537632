package main

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/getsentry/tickprof/internal/billing"
	"github.com/getsentry/tickprof/internal/instrument"
)

// Return codes of the simulated host API.
const (
	errTired      = -11
	errNotEnough  = -6
)

var errNoPath = errors.New("no path")

type position struct {
	X, Y int
}

type creep struct {
	name string
	pos  position
}

// world is a small simulated colony whose API is instrumented the way a host
// would register its prototypes: Creep embeds RoomObject, and Game holds the
// clock reading, which is never wrapped.
type world struct {
	rng    *rand.Rand
	creeps []*creep

	roomObject *instrument.Target
	creep      *instrument.Target
	room       *instrument.Target
	game       *instrument.Target
	loop       instrument.Callable
}

func newWorld(creeps int, seed int64) *world {
	w := &world{rng: rand.New(rand.NewSource(seed))}
	for i := 0; i < creeps; i++ {
		w.creeps = append(w.creeps, &creep{
			name: "creep" + string(rune('A'+i%26)),
			pos:  position{X: w.rng.Intn(50), Y: w.rng.Intn(50)},
		})
	}

	w.roomObject = &instrument.Target{
		Accessors: []instrument.Accessor{
			{Name: "pos", Get: w.api(20*time.Microsecond, func(inv instrument.Invocation) (interface{}, error) {
				return inv.Receiver.(*creep).pos, nil
			})},
		},
	}
	w.creep = &instrument.Target{
		Label:    "Creep",
		Embedded: []*instrument.Target{w.roomObject},
		Methods: []instrument.Method{
			{Name: "move", Fn: w.api(150*time.Microsecond, func(inv instrument.Invocation) (interface{}, error) {
				c := inv.Receiver.(*creep)
				if w.rng.Intn(5) == 0 {
					return errTired, nil
				}
				c.pos.X = (c.pos.X + 1) % 50
				return billing.OK, nil
			})},
			{Name: "moveTo", Fn: w.api(80*time.Microsecond, func(inv instrument.Invocation) (interface{}, error) {
				c := inv.Receiver.(*creep)
				if _, err := w.call(w.room, "findPath", nil, c.pos); err != nil {
					return nil, err
				}
				return w.call(w.creep, "move", c)
			})},
			{Name: "harvest", Fn: w.api(120*time.Microsecond, func(instrument.Invocation) (interface{}, error) {
				if w.rng.Intn(3) == 0 {
					return errNotEnough, nil
				}
				return billing.OK, nil
			})},
			{Name: "say", Fn: w.api(10*time.Microsecond, func(instrument.Invocation) (interface{}, error) {
				return billing.OK, nil
			})},
			{Name: "constructor", Fn: w.api(0, func(inv instrument.Invocation) (interface{}, error) {
				return &creep{}, nil
			})},
		},
	}
	w.room = &instrument.Target{
		Label: "Room",
		Methods: []instrument.Method{
			{Name: "find", Fn: w.api(200*time.Microsecond, func(instrument.Invocation) (interface{}, error) {
				return w.creeps, nil
			})},
			{Name: "findPath", Fn: w.api(300*time.Microsecond, func(instrument.Invocation) (interface{}, error) {
				if w.rng.Intn(20) == 0 {
					return nil, errNoPath
				}
				return []position{}, nil
			})},
		},
	}
	w.game = &instrument.Target{
		Label: "Game",
		Methods: []instrument.Method{
			{Name: "getUsed", Fn: w.api(0, func(instrument.Invocation) (interface{}, error) {
				return 0, nil
			})},
		},
	}
	w.loop = instrument.Func(func(instrument.Invocation) (interface{}, error) {
		return nil, w.tick()
	})
	return w
}

// register instruments every target and the main loop.
func (w *world) register(r *instrument.Registry) error {
	for _, t := range []*instrument.Target{w.creep, w.room, w.game} {
		if err := r.RegisterTarget(t); err != nil {
			return err
		}
	}
	loop, err := r.RegisterFunc("loop", w.loop)
	if err != nil {
		return err
	}
	w.loop = loop
	return nil
}

// run is the body of one slice.
func (w *world) run(context.Context) error {
	_, err := w.loop.Invoke(instrument.Invocation{})
	return err
}

func (w *world) tick() error {
	if _, err := w.call(w.room, "find", nil); err != nil {
		return err
	}
	for _, c := range w.creeps {
		if _, err := w.get(w.roomObject, "pos", c); err != nil {
			return err
		}
		if _, err := w.call(w.creep, "moveTo", c); err != nil && !errors.Is(err, errNoPath) {
			return err
		}
		if _, err := w.call(w.creep, "harvest", c); err != nil {
			return err
		}
		if w.rng.Intn(10) == 0 {
			if _, err := w.call(w.creep, "say", c, "hi"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *world) call(t *instrument.Target, name string, recv interface{}, args ...interface{}) (interface{}, error) {
	for _, m := range t.Methods {
		if m.Name == name {
			return m.Fn.Invoke(instrument.Invocation{Receiver: recv, Args: args})
		}
	}
	return nil, errors.New("unknown method " + t.Label + "." + name)
}

func (w *world) get(t *instrument.Target, name string, recv interface{}) (interface{}, error) {
	for _, a := range t.Accessors {
		if a.Name == name && a.Get != nil {
			return a.Get.Invoke(instrument.Invocation{Receiver: recv})
		}
	}
	return nil, errors.New("unknown property " + name)
}

// api returns a callable that burns cost of CPU before running fn.
func (w *world) api(cost time.Duration, fn instrument.Func) instrument.Func {
	return func(inv instrument.Invocation) (interface{}, error) {
		burn(cost)
		return fn(inv)
	}
}

func burn(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
