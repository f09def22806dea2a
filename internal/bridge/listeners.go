package bridge

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

// Dispatcher carries session events to listeners
type Dispatcher interface {
	Post(event types.Event)
	// Subscribe registers a listener and returns a function removing it.
	Subscribe(listener types.Listener) (unsubscribe func())
}

// fanout holds listeners in subscription order
type fanout struct {
	mu        sync.RWMutex
	nextID    int
	listeners []subscription // Protected by mu
	logger    *logging.Logger
}

type subscription struct {
	id int
	fn types.Listener
}

func (f *fanout) subscribe(fn types.Listener) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners = append(f.listeners, subscription{id: id, fn: fn})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, s := range f.listeners {
				if s.id == id {
					f.listeners = append(f.listeners[:i:i], f.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// deliver calls every listener with e; a panicking listener is logged and
// skipped so the others still see the event
func (f *fanout) deliver(e types.Event) {
	f.mu.RLock()
	subs := make([]subscription, len(f.listeners))
	copy(subs, f.listeners)
	f.mu.RUnlock()

	for _, s := range subs {
		f.call(s.fn, e)
	}
}

func (f *fanout) call(fn types.Listener, e types.Event) {
	defer func() {
		if p := recover(); p != nil {
			f.logger.Error("Event listener panicked",
				zap.String("event", e.String()),
				zap.String("panic", fmt.Sprint(p)),
			)
		}
	}()
	fn(e)
}
