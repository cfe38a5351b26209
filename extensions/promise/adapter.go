package promise

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// Task is the native half of a bridged computation. It runs on its own
// goroutine, never on the event loop, and must not hold references into
// script space: anything it needs has to be copied out before the task
// starts.
type Task func(ctx context.Context) (Settle, error)

// Settle materializes the task result as a script value. It runs on the
// event loop, with the vm held.
type Settle func(vm *goja.Runtime) (goja.Value, error)

// Resolver bridges native asynchronous computations to script-visible
// promises. The promise is created and handed back synchronously; the
// task result re-enters the vm via RunOnLoop, so resolution and rejection
// only ever happen on the loop.
type Resolver struct {
	eventLoop *eventloop.EventLoop
}

func NewResolver(eventLoop *eventloop.EventLoop) (*Resolver, error) {
	if eventLoop == nil {
		return nil, fmt.Errorf("nil Eventloop is invalid")
	}
	return &Resolver{
		eventLoop: eventLoop,
	}, nil
}

// NewPromiseVM must be called on the event loop. Any error out of task or
// settle becomes a rejection; nothing panics past this point.
func (r *Resolver) NewPromiseVM(ctx context.Context, vm *goja.Runtime, task Task) goja.Value {
	promise, resolve, reject := vm.NewPromise()
	ret := vm.ToValue(promise)

	go func() {
		settle, err := task(ctx)
		r.eventLoop.RunOnLoop(func(vm *goja.Runtime) {
			if err != nil {
				reject(vm.NewGoError(err))
				return
			}
			result, err := settle(vm)
			if err != nil {
				reject(vm.NewGoError(err))
				return
			}
			resolve(result)
		})
	}()

	return ret
}
