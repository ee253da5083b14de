package poll

import "sync"

// fanout delivers values to subscribers through one-slot channels. A slow
// subscriber only ever sees the latest value.
type fanout[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

func (f *fanout[T]) subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[int]chan T)
	}
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

func (f *fanout[T]) send(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
