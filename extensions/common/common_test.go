package common

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/stretchr/testify/require"
)

func TestHeadersProxy(t *testing.T) {
	as := require.New(t)

	vm := goja.New()
	proxy := NewHeadersProxy(vm)

	header := http.Header{}
	header.Set("Content-Type", "text/plain")
	header.Add("X-Tag", "one")
	header.Add("X-Tag", "two")
	proxy.UseHeader(header)

	as.NoError(vm.Set("headers", proxy.NativeObject()))

	v, err := vm.RunString(`headers["content-type"]`)
	as.NoError(err)
	as.Equal("text/plain", v.String())

	v, err = vm.RunString(`headers["x-tag"]`)
	as.NoError(err)
	as.Equal("one, two", v.String())

	v, err = vm.RunString(`Object.keys(headers).join(",")`)
	as.NoError(err)
	as.Equal("Content-Type,X-Tag", v.String())

	// read-only
	v, err = vm.RunString(`(() => { headers["x-new"] = "nope"; return typeof headers["x-new"] })()`)
	as.NoError(err)
	as.Equal("undefined", v.String())

	proxy.UnsetHeader()
	v, err = vm.RunString(`typeof headers["content-type"]`)
	as.NoError(err)
	as.Equal("undefined", v.String())
}

func TestDrainAll(t *testing.T) {
	as := require.New(t)

	data, err := DrainAll(io.NopCloser(bytes.NewBufferString("hello")))
	as.NoError(err)
	as.Equal([]byte("hello"), data)

	data, err = DrainAll(nil)
	as.NoError(err)
	as.Nil(data)
}

func TestPool(t *testing.T) {
	as := require.New(t)

	type item struct{ n int }

	made := 0
	p := NewPool[*item](4).WithFactory(func() *item {
		made++
		return &item{n: made}
	})

	first := p.Get()
	as.Equal(1, first.n)
	p.Put(first)

	second := p.Get()
	as.Same(first, second)

	as.Panics(func() {
		p.Put(nil)
	})
}

func TestPoolLoopFactory(t *testing.T) {
	as := require.New(t)

	loop := eventloop.NewEventLoop()
	loop.Start()
	defer loop.StopNoWait()

	p := NewPool[*goja.Object](4).WithLoopFactory(loop, func(vm *goja.Runtime) *goja.Object {
		return vm.NewObject()
	})

	obj := p.Get()
	as.NotNil(obj)
	p.Put(obj)
	as.Same(obj, p.Get())
}
