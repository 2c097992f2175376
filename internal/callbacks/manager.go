package callbacks

import (
	"sync"
)

// Callback fans a message out to named subscribers.
// Messages are delivered synchronously in the order AddMessage is called;
// a subscriber returning false is removed.
type Callback[V any] struct {
	mx        sync.Mutex
	callbacks sync.Map
}

func New[V any]() *Callback[V] {
	return &Callback[V]{
		callbacks: sync.Map{},
	}
}

func (p *Callback[V]) AddMessage(msg V) {
	p.mx.Lock()
	defer p.mx.Unlock()

	p.callbacks.Range(func(key, value any) bool {
		if fn, ok := value.(func(msg V) bool); ok {
			if !fn(msg) {
				p.callbacks.Delete(key)
			}
		}

		return true
	})
}

func (p *Callback[V]) Subscribe(name string, fn func(msg V) bool) {
	p.callbacks.Store(name, fn)
}

func (p *Callback[V]) Unsubscribe(name string) bool {
	_, found := p.callbacks.LoadAndDelete(name)

	return found
}

func (p *Callback[V]) Len() int {
	n := 0

	p.callbacks.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}
