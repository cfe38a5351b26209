package common

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/puzpuzpuz/xsync/v2"
)

const DefaultPoolCapacity = 2048

// Pool is a specialized object pool implementation to replace sync.Pool
// for objects bound to a JavaScript runtime. Unlike sync.Pool, Pool is
// backed by an MPMC queue, and objects in it will not be garbage collected
// for the lifetime of the pool, and its capacity is bounded. Initializing
// a pooled object usually requires a trip onto the event loop, so keeping
// them long-lived avoids repeated round-trips.
type Pool[T comparable] struct {
	zero    T
	factory func() T
	q       *xsync.MPMCQueue
}

func NewPool[T comparable](capacity int) *Pool[T] {
	p := &Pool[T]{
		q: xsync.NewMPMCQueue(capacity),
	}
	return p
}

func (p *Pool[T]) WithFactory(factory func() T) *Pool[T] {
	p.factory = factory
	return p
}

// WithLoopFactory constructs new pool objects on the given event loop.
// Objects carrying native script values have to be created with the vm
// held; a Get that misses the pool blocks until the loop has produced
// the object.
func (p *Pool[T]) WithLoopFactory(loop *eventloop.EventLoop, factory func(vm *goja.Runtime) T) *Pool[T] {
	p.factory = func() T {
		itemCh := make(chan T, 1)
		loop.RunOnLoop(func(vm *goja.Runtime) {
			itemCh <- factory(vm)
		})
		return <-itemCh
	}
	return p
}

func (p *Pool[T]) Get() T {
	item, ok := p.q.TryDequeue()
	if ok {
		return item.(T)
	}
	return p.factory()
}

func (p *Pool[T]) Put(item T) {
	if item == p.zero {
		panic("common.Pool: cannot put zero value into the pool")
	}
	p.q.TryEnqueue(item)
}
