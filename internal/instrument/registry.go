package instrument

import (
	"github.com/rs/zerolog"
)

// DefaultBlacklist holds member names that are never wrapped: the clock
// reading itself, to avoid measuring the measurement, and constructors.
var DefaultBlacklist = []string{"getUsed", "constructor"}

type (
	Method struct {
		Name string
		Fn   Callable
	}

	// Accessor is a property backed by a getter and/or a setter. Fixed
	// accessors cannot be redefined and are left alone.
	Accessor struct {
		Name  string
		Get   Callable
		Set   Callable
		Fixed bool
	}

	// Target is a group of members instrumented under a common label, e.g.
	// the methods of a type. Embedded targets are instrumented first, under
	// the same label.
	Target struct {
		Label     string
		Methods   []Method
		Accessors []Accessor
		Embedded  []*Target
	}
)

// Registry installs wrappers on the targets supplied by the host.
type Registry struct {
	tracker   *Tracker
	logger    zerolog.Logger
	blacklist map[string]struct{}
	wrapped   map[string]Callable
}

func NewRegistry(t *Tracker, logger zerolog.Logger, blacklist ...string) *Registry {
	if blacklist == nil {
		blacklist = DefaultBlacklist
	}
	r := &Registry{
		tracker:   t,
		logger:    logger,
		blacklist: make(map[string]struct{}, len(blacklist)),
		wrapped:   make(map[string]Callable),
	}
	for _, name := range blacklist {
		r.blacklist[name] = struct{}{}
	}
	return r
}

// RegisterTarget replaces the members of target with wrapped callables named
// "Label.member", "Label.member:get" and "Label.member:set". A nil target is
// ignored.
func (r *Registry) RegisterTarget(target *Target) error {
	if target == nil {
		return nil
	}
	for _, embedded := range target.Embedded {
		if embedded == nil {
			continue
		}
		if embedded.Label == "" {
			embedded.Label = target.Label
		}
		if err := r.RegisterTarget(embedded); err != nil {
			return err
		}
	}

	for i := range target.Methods {
		m := &target.Methods[i]
		if r.skip(m.Name) || m.Fn == nil {
			continue
		}
		fn, err := r.wrap(target.Label+"."+m.Name, m.Fn)
		if err != nil {
			return err
		}
		m.Fn = fn
	}

	for i := range target.Accessors {
		a := &target.Accessors[i]
		if r.skip(a.Name) || a.Fixed {
			continue
		}
		label := target.Label + "." + a.Name
		if a.Get != nil {
			fn, err := r.wrap(label+":get", a.Get)
			if err != nil {
				return err
			}
			a.Get = fn
		}
		if a.Set != nil {
			fn, err := r.wrap(label+":set", a.Set)
			if err != nil {
				return err
			}
			a.Set = fn
		}
	}
	return nil
}

// RegisterFunc wraps a single callable. Without a name there is nothing to
// attribute the cost to, so fn is returned as is.
func (r *Registry) RegisterFunc(name string, fn Callable) (Callable, error) {
	if name == "" {
		r.logger.Warn().Msg("couldn't find a function name, will not profile this function")
		return fn, nil
	}
	return r.wrap(name, fn)
}

// Lookup returns the last callable registered under name.
func (r *Registry) Lookup(name string) (Callable, bool) {
	fn, ok := r.wrapped[name]
	return fn, ok
}

func (r *Registry) Len() int {
	return len(r.wrapped)
}

func (r *Registry) skip(name string) bool {
	_, ok := r.blacklist[name]
	return ok
}

func (r *Registry) wrap(name string, fn Callable) (Callable, error) {
	w, err := r.tracker.Wrap(name, fn)
	if err != nil {
		return nil, err
	}
	r.wrapped[name] = w
	return w, nil
}
