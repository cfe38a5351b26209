package env

import (
	"net/http"

	"go.miragespace.co/umbra/extensions/common"

	"github.com/dop251/goja"
)

// ResponseProxy is the script-visible result of an assets fetch. The
// native response body has already been drained into bytes by the time
// the proxy is constructed, so every accessor here is loop-safe and
// non-blocking.
type ResponseProxy struct {
	vm           *goja.Runtime
	resp         *http.Response
	body         []byte
	url          string
	headersProxy *common.HeadersProxy
	nativeObj    *goja.Object
	bodyUsed     bool

	_text        goja.Value
	_arrayBuffer goja.Value
}

var _ goja.DynamicObject = (*ResponseProxy)(nil)

var responseProperties = []string{"body", "bodyUsed", "headers", "ok", "status", "statusText", "url"}

func newResponseProxy(vm *goja.Runtime, resp *http.Response, body []byte, url string) *ResponseProxy {
	r := &ResponseProxy{
		vm:           vm,
		resp:         resp,
		body:         body,
		url:          url,
		headersProxy: common.NewHeadersProxy(vm),
	}
	r.headersProxy.UseHeader(resp.Header)
	r._text = vm.ToValue(r.text)
	r._arrayBuffer = vm.ToValue(r.arrayBuffer)
	r.nativeObj = vm.NewDynamicObject(r)
	return r
}

func (r *ResponseProxy) Get(key string) goja.Value {
	switch key {
	case "status":
		return r.vm.ToValue(r.resp.StatusCode)
	case "statusText":
		return r.vm.ToValue(http.StatusText(r.resp.StatusCode))
	case "ok":
		return r.vm.ToValue(r.resp.StatusCode >= 200 && r.resp.StatusCode < 300)
	case "url":
		return r.vm.ToValue(r.url)
	case "headers":
		return r.headersProxy.NativeObject()
	case "body":
		return r.vm.ToValue(string(r.body))
	case "bodyUsed":
		return r.vm.ToValue(r.bodyUsed)
	case "text":
		return r._text
	case "arrayBuffer":
		return r._arrayBuffer
	default:
		return nil
	}
}

func (r *ResponseProxy) Set(key string, val goja.Value) bool {
	return false
}

func (r *ResponseProxy) Has(key string) bool {
	for _, k := range responseProperties {
		if k == key {
			return true
		}
	}
	return false
}

func (r *ResponseProxy) Delete(key string) bool {
	return false
}

func (r *ResponseProxy) Keys() []string {
	return responseProperties
}

// text and arrayBuffer hand back already-settled promises: the bytes are
// in hand, only the Fetch-shaped surface is asynchronous.
func (r *ResponseProxy) text(fc goja.FunctionCall, vm *goja.Runtime) goja.Value {
	promise, resolve, _ := vm.NewPromise()
	r.bodyUsed = true
	resolve(string(r.body))
	return vm.ToValue(promise)
}

func (r *ResponseProxy) arrayBuffer(fc goja.FunctionCall, vm *goja.Runtime) goja.Value {
	promise, resolve, _ := vm.NewPromise()
	r.bodyUsed = true
	resolve(vm.NewArrayBuffer(r.body))
	return vm.ToValue(promise)
}

// Native accessors for the host side of the runtime, used when a worker
// handler returns the proxy as its response.

func (r *ResponseProxy) Status() int {
	return r.resp.StatusCode
}

func (r *ResponseProxy) Header() http.Header {
	return r.resp.Header
}

func (r *ResponseProxy) BodyBytes() []byte {
	return r.body
}

func (r *ResponseProxy) URL() string {
	return r.url
}
