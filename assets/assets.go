package assets

import (
	"context"
	"net/http"
)

// Dispatcher resolves a fully materialized native request to a stored
// static file's response. The request body, if any, has already been
// drained into bytes by the caller. A returned error rejects the
// script-visible fetch; a non-2xx response is still a valid response.
type Dispatcher interface {
	ServeStaticFile(ctx context.Context, req *http.Request) (*http.Response, error)
}

// DispatcherFunc adapts a plain function to a Dispatcher.
type DispatcherFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f DispatcherFunc) ServeStaticFile(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}
