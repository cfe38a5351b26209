package umbra

import (
	"fmt"
	"net/http"
	"reflect"

	"go.miragespace.co/umbra/extensions/env"

	"github.com/dop251/goja"
	pool "github.com/libp2p/go-buffer-pool"
	"go.uber.org/zap"
)

// requestContext carries one inbound HTTP request through the worker
// script and writes the script's answer back out. One context serves one
// request at a time; the pool recycles them between requests.
type requestContext struct {
	httpReq       *http.Request
	httpResp      http.ResponseWriter
	httpNext      http.Handler
	requestProxy  *requestContextRequest
	nativeResolve goja.Value
	nativeReject  goja.Value
	done          chan struct{}
	vm            *goja.Runtime
	logger        *zap.Logger
	responseSent  bool
}

func newRequestContext(vm *goja.Runtime, logger *zap.Logger) *requestContext {
	ctx := &requestContext{
		done:   make(chan struct{}, 1),
		vm:     vm,
		logger: logger,
	}
	ctx.nativeResolve = ctx.getNativeContextResolver()
	ctx.nativeReject = ctx.getNativeContextRejector()
	ctx.requestProxy = newRequestContextRequest(ctx)
	return ctx
}

func (ctx *requestContext) withHTTP(w http.ResponseWriter, r *http.Request, next http.Handler) *requestContext {
	ctx.httpResp = w
	ctx.httpReq = r
	ctx.httpNext = next
	ctx.requestProxy.use(r)
	return ctx
}

func (ctx *requestContext) reset() {
	ctx.httpReq = nil
	ctx.httpResp = nil
	ctx.httpNext = nil
	ctx.responseSent = false
	ctx.requestProxy.reset()
}

func (ctx *requestContext) wait() {
	<-ctx.done
}

func (ctx *requestContext) wake() {
	ctx.done <- struct{}{}
}

func (ctx *requestContext) exception(err error) {
	if ctx.responseSent {
		return
	}
	select {
	case <-ctx.httpReq.Context().Done():
	default:
		ctx.httpResp.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(ctx.httpResp, "Unexpected runtime exception: %+v", err)
	}
	ctx.responseSent = true
	ctx.wake()
}

func (ctx *requestContext) getNativeContextResolver() goja.Value {
	return ctx.vm.ToValue(func(fc goja.FunctionCall) (ret goja.Value) {
		ret = goja.Undefined()

		var (
			w = ctx.httpResp
			r = ctx.httpReq
			v = fc.Argument(0)
		)

		if goja.IsUndefined(v) || goja.IsNull(v) {
			// fallthrough, handler declined the request
			go func() {
				defer ctx.wake()
				ctx.httpNext.ServeHTTP(w, r)
			}()
			return
		}

		ctx.responseSent = true

		if proxy, ok := v.Export().(*env.ResponseProxy); ok {
			var (
				status = proxy.Status()
				header = proxy.Header()
				body   = proxy.BodyBytes()
			)
			go func() {
				defer ctx.wake()
				for k, values := range header {
					for _, hv := range values {
						w.Header().Add(k, hv)
					}
				}
				w.WriteHeader(status)
				if _, err := w.Write(body); err != nil {
					ctx.logger.Error("Error writing response", zap.Error(err))
				}
			}()
			return
		}

		if t := v.ExportType(); t != nil && t.Kind() == reflect.String {
			s := v.String()
			go func() {
				defer ctx.wake()
				buf := pool.NewBufferString(s)
				defer buf.Reset()
				w.WriteHeader(http.StatusOK)
				if _, err := buf.WriteTo(w); err != nil {
					ctx.logger.Error("Error writing response", zap.Error(err))
				}
			}()
			return
		}

		// handler resolved to something we cannot represent
		go func() {
			defer ctx.wake()
			w.WriteHeader(http.StatusNoContent)
		}()
		return
	})
}

func (ctx *requestContext) getNativeContextRejector() goja.Value {
	return ctx.vm.ToValue(func(fc goja.FunctionCall) (ret goja.Value) {
		ret = goja.Undefined()

		var (
			w   = ctx.httpResp
			v   = fc.Argument(0)
			msg = ""
		)
		if !goja.IsUndefined(v) {
			msg = exceptionString(v)
		}

		ctx.responseSent = true

		go func() {
			defer ctx.wake()
			w.WriteHeader(http.StatusInternalServerError)
			if msg != "" {
				fmt.Fprintf(w, "Execution exception: %s", msg)
			}
		}()
		return
	})
}

// exceptionString runs on the loop: pulling .message out of an Error value
// touches the vm and may not happen on the writer goroutine.
func exceptionString(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			return m.String()
		}
	}
	return v.String()
}
