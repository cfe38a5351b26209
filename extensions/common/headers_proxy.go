package common

import (
	"net/http"
	"sort"
	"strings"

	"github.com/dop251/goja"
)

// HeadersProxy exposes an http.Header to script as a read-only object.
// Lookup is case-insensitive, and multiple values under the same name are
// joined with ", " the way Fetch Headers.get does.
type HeadersProxy struct {
	vm        *goja.Runtime
	nativeObj *goja.Object
	header    http.Header
}

var _ goja.DynamicObject = (*HeadersProxy)(nil)

func NewHeadersProxy(vm *goja.Runtime) *HeadersProxy {
	proxy := &HeadersProxy{
		vm: vm,
	}
	proxy.nativeObj = vm.NewDynamicObject(proxy)
	return proxy
}

func (h *HeadersProxy) UseHeader(header http.Header) {
	h.header = header
}

func (h *HeadersProxy) UnsetHeader() {
	h.header = nil
}

func (h *HeadersProxy) NativeObject() goja.Value {
	return h.nativeObj
}

func (h *HeadersProxy) Get(key string) goja.Value {
	if h.header == nil {
		return goja.Undefined()
	}
	values := h.header.Values(key)
	if len(values) == 0 {
		return goja.Undefined()
	}
	return h.vm.ToValue(strings.Join(values, ", "))
}

func (h *HeadersProxy) Set(key string, val goja.Value) bool {
	return false
}

func (h *HeadersProxy) Has(key string) bool {
	return !goja.IsUndefined(h.Get(key))
}

func (h *HeadersProxy) Delete(key string) bool {
	return false
}

func (h *HeadersProxy) Keys() []string {
	keys := make([]string, 0, len(h.header))
	for k := range h.header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
