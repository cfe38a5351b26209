package umbra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"go.miragespace.co/umbra/assets"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testScriptNoHandler = `
"use strict"
`

const testScriptAssets = `
"use strict"

registerRequestHandler(async (request, environment) => {
	return await environment.ASSETS.fetch(request)
})
`

const testScriptPlain = `
"use strict"

registerRequestHandler(() => {
	return "plain"
})
`

const testScriptFallthrough = `
"use strict"

registerRequestHandler(() => {
	return undefined
})
`

const testScriptAbandonedFetch = `
"use strict"

registerRequestHandler((request, environment) => {
	environment.ASSETS.fetch(request)
	return "plain"
})
`

func testAssets(t *testing.T) assets.Dispatcher {
	store, err := assets.NewFSStore(zaptest.NewLogger(t), fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<h1>hi</h1>")},
		"a.txt":      &fstest.MapFile{Data: []byte("hello")},
	})
	require.NoError(t, err)
	return store
}

func testRouter(rt *Runtime) *chi.Mux {
	router := chi.NewRouter()
	router.Use(rt.Middleware)
	router.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	return router
}

func TestEmptyRuntime(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)

	rt, err := NewRuntime(logger, testAssets(t), 1)
	as.NoError(err)
	defer rt.Stop(true)

	req := httptest.NewRequest(http.MethodGet, "http://test/", nil)
	w := httptest.NewRecorder()

	testRouter(rt).ServeHTTP(w, req)

	as.Equal(http.StatusServiceUnavailable, w.Result().StatusCode)
}

func TestRuntimeNoHandler(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)

	rt, err := NewRuntime(logger, testAssets(t), 1)
	as.NoError(err)
	defer rt.Stop(true)

	err = rt.LoadScript("no_handler.js", testScriptNoHandler, false)
	as.NoError(err)

	req := httptest.NewRequest(http.MethodGet, "http://test/", nil)
	w := httptest.NewRecorder()

	testRouter(rt).ServeHTTP(w, req)

	as.Equal(http.StatusBadGateway, w.Result().StatusCode)
}

func TestStaticAssetWorker(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)

	rt, err := NewRuntime(logger, testAssets(t), 1)
	as.NoError(err)
	defer rt.Stop(true)

	err = rt.LoadScript("assets.js", testScriptAssets, false)
	as.NoError(err)

	router := testRouter(rt)

	req := httptest.NewRequest(http.MethodGet, "http://test/a.txt", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	as.Equal(http.StatusOK, w.Result().StatusCode)
	as.True(strings.HasPrefix(w.Result().Header.Get("Content-Type"), "text/plain"))
	body, err := io.ReadAll(w.Result().Body)
	as.NoError(err)
	as.Equal("hello", string(body))

	req = httptest.NewRequest(http.MethodGet, "http://test/", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	as.Equal(http.StatusOK, w.Result().StatusCode)
	body, err = io.ReadAll(w.Result().Body)
	as.NoError(err)
	as.Equal("<h1>hi</h1>", string(body))
}

func TestStaticAssetWorkerMissingFile(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)

	rt, err := NewRuntime(logger, testAssets(t), 1)
	as.NoError(err)
	defer rt.Stop(true)

	err = rt.LoadScript("assets.js", testScriptAssets, false)
	as.NoError(err)

	req := httptest.NewRequest(http.MethodGet, "http://test/nope.txt", nil)
	w := httptest.NewRecorder()
	testRouter(rt).ServeHTTP(w, req)

	as.Equal(http.StatusNotFound, w.Result().StatusCode)
}

func TestWorkerDispatchErrorSurfaces(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)

	failing := assets.DispatcherFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return nil, errors.New("disk error")
	})

	rt, err := NewRuntime(logger, failing, 1)
	as.NoError(err)
	defer rt.Stop(true)

	err = rt.LoadScript("assets.js", testScriptAssets, false)
	as.NoError(err)

	req := httptest.NewRequest(http.MethodGet, "http://test/a.txt", nil)
	w := httptest.NewRecorder()
	testRouter(rt).ServeHTTP(w, req)

	as.Equal(http.StatusInternalServerError, w.Result().StatusCode)
	body, err := io.ReadAll(w.Result().Body)
	as.NoError(err)
	as.Contains(string(body), "Failed to fetch static asset due to disk error")
}

func TestWorkerAbandonedFetch(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)

	rt, err := NewRuntime(logger, testAssets(t), 1)
	as.NoError(err)
	defer rt.Stop(true)

	err = rt.LoadScript("abandoned.js", testScriptAbandonedFetch, false)
	as.NoError(err)

	router := testRouter(rt)

	// the handler never awaits the fetch, so the pooled context gets
	// recycled for the next request while the fetch continuation may
	// still be in flight on the loop; every request must keep answering
	// normally regardless
	for i := 0; i < 200; i++ {
		req := httptest.NewRequest(http.MethodGet, "http://test/a.txt", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Result().StatusCode)
		body, err := io.ReadAll(w.Result().Body)
		as.NoError(err)
		as.Equal("plain", string(body))
	}
}

func TestWorkerFallthrough(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)

	rt, err := NewRuntime(logger, testAssets(t), 1)
	as.NoError(err)
	defer rt.Stop(true)

	err = rt.LoadScript("fallthrough.js", testScriptFallthrough, false)
	as.NoError(err)

	req := httptest.NewRequest(http.MethodGet, "http://test/", nil)
	w := httptest.NewRecorder()
	testRouter(rt).ServeHTTP(w, req)

	as.Equal(http.StatusOK, w.Result().StatusCode)
	body, err := io.ReadAll(w.Result().Body)
	as.NoError(err)
	as.Equal("ok", string(body))
}

func TestRuntimeScriptReload(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)

	rt, err := NewRuntime(logger, testAssets(t), 1)
	as.NoError(err)
	defer rt.Stop(true)

	err = rt.LoadScript("assets.js", testScriptAssets, false)
	as.NoError(err)

	router := testRouter(rt)

	req := httptest.NewRequest(http.MethodGet, "http://test/a.txt", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	as.Equal(http.StatusOK, w.Result().StatusCode)
	body, err := io.ReadAll(w.Result().Body)
	as.NoError(err)
	as.Equal("hello", string(body))

	err = rt.LoadScript("plain.js", testScriptPlain, false)
	as.NoError(err)

	req = httptest.NewRequest(http.MethodGet, "http://test/a.txt", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	as.Equal(http.StatusOK, w.Result().StatusCode)
	body, err = io.ReadAll(w.Result().Body)
	as.NoError(err)
	as.Equal("plain", string(body))
}
