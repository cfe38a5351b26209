package umbra

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.miragespace.co/umbra/extensions/env"
	"go.miragespace.co/umbra/extensions/promise"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/dop251/goja_nodejs/url"
	"go.uber.org/zap"
)

type runtimeInstance struct {
	logger          *zap.Logger
	requestHandler  atomic.Value // goja.Value
	contextPool     *requestContextPool
	eventLoop       *eventloop.EventLoop
	resolver        *promise.Resolver
	binding         *env.Binding
	runtimeResolver goja.Callable
	vm              *goja.Runtime
}

func (inst *runtimeInstance) stop(interrupt bool) {
	if interrupt {
		inst.vm.Interrupt(context.Canceled)
	}
	inst.eventLoop.StopNoWait()
}

func (inst *runtimeInstance) prepareInstance() (setup chan error) {
	setup = make(chan error, 1)

	inst.eventLoop.RunOnLoop(func(vm *goja.Runtime) {
		url.Enable(vm)
		vm.Set("console", require.Require(vm, console.ModuleName))

		_, err := vm.RunProgram(runtimeResolverProg)
		if err != nil {
			setup <- err
			return
		}

		resolver := vm.Get(runtimeResolverSymbol)
		wrapper, ok := goja.AssertFunction(resolver)
		if !ok {
			setup <- fmt.Errorf("internal error: %s is not a function", runtimeResolverSymbol)
			return
		}
		inst.runtimeResolver = wrapper

		vm.Set("registerRequestHandler", func(fc goja.FunctionCall) (ret goja.Value) {
			ret = goja.Undefined()

			fn := fc.Argument(0)
			if _, ok := goja.AssertFunction(fn); ok {
				inst.requestHandler.Store(fn)
			}

			return
		})

		inst.vm = vm // reference is kept for .Interrupt

		setup <- nil
	})

	return
}

func (inst *runtimeInstance) loadProgram(prog *goja.Program) (setup chan error) {
	setup = make(chan error, 1)

	inst.eventLoop.RunOnLoop(func(vm *goja.Runtime) {
		_, err := vm.RunProgram(prog)
		if err != nil {
			setup <- fmt.Errorf("error setting up handler script: %w", err)
			return
		}
		setup <- nil
	})

	return
}
