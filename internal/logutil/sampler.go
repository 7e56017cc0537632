package logutil

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LevelSampler lets every event at or above Level through and one in Every
// of the events below it. Every set to 0 or 1 keeps them all.
type LevelSampler struct {
	Level zerolog.Level
	Every uint32

	counter uint32
}

func (l *LevelSampler) Sample(lvl zerolog.Level) bool {
	if lvl >= l.Level || l.Every <= 1 {
		return true
	}
	return atomic.AddUint32(&l.counter, 1)%l.Every == 1
}
