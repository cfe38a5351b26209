package umbra

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.miragespace.co/umbra/assets"
	"go.miragespace.co/umbra/extensions/env"
	"go.miragespace.co/umbra/extensions/promise"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"go.uber.org/zap"
	"golang.org/x/sys/cpu"
)

const maxInflightDispatch = 10

type Runtime struct {
	logger     *zap.Logger
	dispatcher assets.Dispatcher
	shards     []atomic.Pointer[runtimeInstance]
	_          cpu.CacheLinePad
	nextShard  uint32
	_          cpu.CacheLinePad
	numShards  int
}

// NewRuntime returns a new umbra runtime serving static assets through the
// given dispatcher. Use shards > 1 to round-robin incoming requests to
// multiple JavaScript runtimes. Recommend not exceeding 4.
func NewRuntime(logger *zap.Logger, dispatcher assets.Dispatcher, shards int) (*Runtime, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}

	if shards < 1 {
		return nil, fmt.Errorf("shards cannot be smaller than 1")
	}

	rt := &Runtime{
		logger:     logger,
		dispatcher: dispatcher,
		shards:     make([]atomic.Pointer[runtimeInstance], shards),
		numShards:  shards,
	}

	logger.Info("Umbra runtime configured",
		zap.Int("dispatch.maxInflight", maxInflightDispatch),
		zap.Int("shards", shards),
	)

	return rt, nil
}

// LoadScript reloads the worker script on-the-fly. The script will be
// executed in a fresh runtime. Specifying interrupt will interrupt the
// currently running VM instead of graceful exit. This is useful when the
// script was misbehaving and needs to be reloaded.
func (rt *Runtime) LoadScript(scriptName, script string, interrupt bool) (err error) {
	var (
		prog *goja.Program
	)

	prog, err = goja.Compile(scriptName, script, true)
	if err != nil {
		return fmt.Errorf("error compiling script: %w", err)
	}

	// force GC on script reload
	defer runtime.GC()

	start := time.Now()
	for i := range rt.shards {
		registry := require.NewRegistry()
		registry.RegisterNativeModule(
			console.ModuleName,
			console.RequireWithPrinter(newRuntimePrinter(scriptName, rt.logger)),
		)

		instance, err := rt.getInstance(registry)
		if err != nil {
			return err
		}

		err = <-instance.loadProgram(prog)
		if err != nil {
			return err
		}

		old := rt.shards[i].Swap(instance)
		if old != nil {
			old.stop(interrupt)
		}
	}

	duration := time.Since(start)
	rt.logger.Info("All shards reloaded",
		zap.Duration("duration", duration),
		zap.String("script", scriptName),
		zap.Int("shards", rt.numShards),
	)

	return nil
}

func (rt *Runtime) getShard() *runtimeInstance {
	n := atomic.AddUint32(&rt.nextShard, 1)
	return rt.shards[int(n)%rt.numShards].Load()
}

func (rt *Runtime) getInstance(registry *require.Registry) (instance *runtimeInstance, err error) {
	eventLoop := eventloop.NewEventLoop(
		eventloop.EnableConsole(false),
		eventloop.WithRegistry(registry),
	)
	eventLoop.Start()

	defer func() {
		if err != nil {
			eventLoop.StopNoWait()
		}
	}()

	instance = &runtimeInstance{
		logger:    rt.logger,
		eventLoop: eventLoop,
	}

	instance.resolver, err = promise.NewResolver(eventLoop)
	if err != nil {
		return
	}

	instance.binding, err = env.NewBinding(env.Config{
		Eventloop:   eventLoop,
		Logger:      rt.logger,
		Resolver:    instance.resolver,
		Dispatcher:  rt.dispatcher,
		MaxInflight: maxInflightDispatch,
	})
	if err != nil {
		return
	}

	err = <-instance.prepareInstance()
	if err != nil {
		return
	}

	instance.contextPool = newRequestContextPool(instance)

	return
}

func (rt *Runtime) Stop(interrupt bool) {
	for i := range rt.shards {
		old := rt.shards[i].Swap(nil)
		if old != nil {
			old.stop(interrupt)
		}
	}
}
