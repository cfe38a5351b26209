package umbra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync/atomic"

	"go.miragespace.co/umbra/extensions/common"
	"go.miragespace.co/umbra/extensions/env"

	"github.com/dop251/goja"
)

// requestContextRequest is the script-visible view of the inbound HTTP
// request, and the value the worker hands to environment.ASSETS.fetch.
// The body is never exposed to script directly; the bridge detaches it
// natively, exactly once. The backing *http.Request is held through an
// atomic pointer: the pool recycles contexts on the HTTP goroutine while
// script may still hold a reference to this object on the event loop, and
// a detached view has to read as empty rather than crash.
type requestContextRequest struct {
	ctx          *requestContext
	headersProxy *common.HeadersProxy
	nativeReq    *goja.Object
	httpReq      atomic.Pointer[http.Request]
	bodyConsumed atomic.Bool
}

var _ goja.DynamicObject = (*requestContextRequest)(nil)
var _ env.ScriptRequest = (*requestContextRequest)(nil)

var requestProperties = []string{"bodyUsed", "headers", "method", "url"}

func newRequestContextRequest(ctx *requestContext) *requestContextRequest {
	req := &requestContextRequest{
		ctx: ctx,
	}
	req.headersProxy = common.NewHeadersProxy(ctx.vm)
	req.nativeReq = ctx.vm.NewDynamicObject(req)
	return req
}

func (req *requestContextRequest) use(r *http.Request) {
	req.httpReq.Store(r)
	req.headersProxy.UseHeader(r.Header)
}

func (req *requestContextRequest) reset() {
	req.httpReq.Store(nil)
	req.headersProxy.UnsetHeader()
	req.bodyConsumed.Store(false)
}

func (req *requestContextRequest) Get(key string) goja.Value {
	switch key {
	case "url":
		return req.ctx.vm.ToValue(req.URL())
	case "method":
		return req.ctx.vm.ToValue(req.Method())
	case "headers":
		return req.headersProxy.NativeObject()
	case "bodyUsed":
		return req.ctx.vm.ToValue(req.bodyConsumed.Load())
	default:
		return goja.Undefined()
	}
}

func (req *requestContextRequest) Set(key string, val goja.Value) bool {
	return false
}

func (req *requestContextRequest) Has(key string) bool {
	for _, k := range requestProperties {
		if k == key {
			return true
		}
	}
	return false
}

func (req *requestContextRequest) Delete(key string) bool {
	return false
}

func (req *requestContextRequest) Keys() []string {
	return requestProperties
}

// env.ScriptRequest. These run on the event loop, synchronously within
// the fetch call. A detached request yields empty values, which the
// bridge reports as a construction failure.

func (req *requestContextRequest) Method() string {
	r := req.httpReq.Load()
	if r == nil {
		return ""
	}
	return r.Method
}

func (req *requestContextRequest) URL() string {
	r := req.httpReq.Load()
	if r == nil {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI())
}

func (req *requestContextRequest) VisitHeaders(fn func(name, value string)) {
	r := req.httpReq.Load()
	if r == nil {
		return
	}
	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range r.Header[k] {
			fn(k, v)
		}
	}
}

func (req *requestContextRequest) TakeBody() (io.ReadCloser, error) {
	if req.bodyConsumed.Swap(true) {
		return nil, env.ErrBodyConsumed
	}

	r := req.httpReq.Load()
	if r == nil {
		return nil, nil
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return nil, nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	return r.Body, nil
}

func (req *requestContextRequest) Context() context.Context {
	r := req.httpReq.Load()
	if r == nil {
		return context.Background()
	}
	return r.Context()
}
