package env

import (
	"context"
	"fmt"

	"go.miragespace.co/umbra/extensions/common"
	"go.miragespace.co/umbra/extensions/promise"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// assetsBinding is the script-visible capability object. Stateless besides
// its registration identity; fetch is the sole entry point.
type assetsBinding struct {
	vm        *goja.Runtime
	binding   *Binding
	logger    *zap.Logger
	limiter   *semaphore.Weighted
	nativeObj *goja.Object

	_fetch goja.Value
}

var _ goja.DynamicObject = (*assetsBinding)(nil)

var assetsProperties = []string{"fetch"}

func newAssetsBinding(vm *goja.Runtime, binding *Binding, proto *goja.Object) *assetsBinding {
	a := &assetsBinding{
		vm:      vm,
		binding: binding,
		logger:  binding.Logger.With(zap.String("component", "assetsBinding")),
		limiter: semaphore.NewWeighted(binding.MaxInflight),
	}
	a._fetch = vm.ToValue(a.fetch)
	a.nativeObj = vm.NewDynamicObject(a)
	a.nativeObj.SetPrototype(proto)
	return a
}

func (a *assetsBinding) Get(key string) goja.Value {
	switch key {
	case "fetch":
		return a._fetch
	default:
		return nil
	}
}

func (a *assetsBinding) Set(key string, val goja.Value) bool {
	return false
}

func (a *assetsBinding) Has(key string) bool {
	return key == "fetch"
}

func (a *assetsBinding) Delete(key string) bool {
	return false
}

func (a *assetsBinding) Keys() []string {
	return assetsProperties
}

// fetch returns a pending promise, or undefined when there is no usable
// request to operate on. Every failure past the bridging step surfaces as
// a rejection, never a synchronous throw.
func (a *assetsBinding) fetch(fc goja.FunctionCall, vm *goja.Runtime) goja.Value {
	arg := fc.Argument(0)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		return goja.Undefined()
	}
	req, ok := arg.Export().(ScriptRequest)
	if !ok {
		return goja.Undefined()
	}

	// bridging runs inside this call frame, while the script request is
	// still live. The worker recycles the request's backing storage once
	// the handler settles, so the continuation must never reach back into
	// the script request; everything it needs is copied out here.
	bridged, bridgeErr := bridgeScriptRequest(req)
	dispatchCtx := req.Context()

	return a.binding.Resolver.NewPromiseVM(dispatchCtx, vm, func(ctx context.Context) (promise.Settle, error) {
		if bridgeErr != nil {
			return nil, bridgeErr
		}

		body, err := bridged.drainBody()
		if err != nil {
			return nil, err
		}

		httpReq, resolvedURL, err := bridged.finalize(ctx, body)
		if err != nil {
			return nil, err
		}

		if err := a.limiter.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		resp, err := a.binding.Dispatcher.ServeStaticFile(ctx, httpReq)
		a.limiter.Release(1)
		if err != nil {
			return nil, fmt.Errorf("Failed to fetch static asset due to %w", err)
		}

		respBody, err := common.DrainAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading asset response body: %w", err)
		}

		return func(vm *goja.Runtime) (goja.Value, error) {
			proxy := newResponseProxy(vm, resp, respBody, resolvedURL.String())
			return proxy.nativeObj, nil
		}, nil
	})
}
