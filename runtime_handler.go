package umbra

import (
	"fmt"
	"net/http"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var (
	ErrRuntimeNotReady = fmt.Errorf("worker runtime is not ready")
	ErrNoHandler       = fmt.Errorf("worker script has no request handler configured")
)

// Middleware hands the incoming request to the worker script. The script
// handler receives (request, environment) and may return a Response from
// environment.ASSETS.fetch, a plain string, or undefined to fall through
// to the next http.Handler.
func (rt *Runtime) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		instance := rt.getShard()

		if instance == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, ErrRuntimeNotReady)
			return
		}

		requestHandler, ok := instance.requestHandler.Load().(goja.Value)
		if !ok {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, ErrNoHandler)
			return
		}

		rctx := instance.contextPool.Get()
		defer instance.contextPool.Put(rctx)

		rctx.withHTTP(w, r, next)

		instance.eventLoop.RunOnLoop(func(vm *goja.Runtime) {
			_, err := instance.runtimeResolver(
				goja.Undefined(),
				requestHandler,
				rctx.requestProxy.nativeReq,
				instance.binding.Environment(),
				rctx.nativeResolve,
				rctx.nativeReject,
			)
			if err != nil {
				instance.logger.Error("Unexpected runtime exception", zap.Error(err))
				rctx.exception(err)
			}
		})

		rctx.wait()
	})
}
