package env

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	pool "github.com/libp2p/go-buffer-pool"
)

var ErrBodyConsumed = fmt.Errorf("request body has already been consumed")

// ScriptRequest is the contract the bridge consumes from the script-level
// request value. Header visitation order is the order copied into the
// native request. TakeBody detaches the body exactly once: a second call
// must return ErrBodyConsumed, and an absent body is (nil, nil).
type ScriptRequest interface {
	Method() string
	URL() string
	VisitHeaders(fn func(name, value string))
	TakeBody() (io.ReadCloser, error)
	Context() context.Context
}

type headerPair struct {
	name  string
	value string
}

// bridgedRequest is the native request under construction. It only lives
// for the duration of one fetch call.
type bridgedRequest struct {
	method  string
	rawURL  string
	headers []headerPair
	body    io.ReadCloser
}

// bridgeScriptRequest runs synchronously inside the fetch call, while the
// script request is live: it copies everything the native side needs out
// of script space and detaches the body handle. Nothing past this point
// may touch the script request again.
func bridgeScriptRequest(sr ScriptRequest) (*bridgedRequest, error) {
	method := sr.Method()
	rawURL := sr.URL()
	if method == "" {
		return nil, fmt.Errorf("request has no method")
	}
	if rawURL == "" {
		return nil, fmt.Errorf("request has no URL")
	}

	b := &bridgedRequest{
		method: method,
		rawURL: rawURL,
	}
	sr.VisitHeaders(func(name, value string) {
		b.headers = append(b.headers, headerPair{name: name, value: value})
	})

	body, err := sr.TakeBody()
	if err != nil {
		return nil, err
	}
	b.body = body

	return b, nil
}

// drainBody runs off the event loop. No body collapses to empty bytes.
func (b *bridgedRequest) drainBody() ([]byte, error) {
	if b.body == nil {
		return nil, nil
	}
	defer b.body.Close()

	buf := pool.NewBuffer(nil)
	defer buf.Reset()

	if _, err := buf.ReadFrom(b.body); err != nil {
		return nil, fmt.Errorf("error reading request body: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// finalize attaches the drained bytes and builds the native request.
// The URL is validated twice on purpose: http.NewRequestWithContext only
// checks structural correctness and will happily take a relative target,
// while the dispatcher downstream needs a parseable absolute URL.
func (b *bridgedRequest) finalize(ctx context.Context, body []byte) (*http.Request, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, b.method, b.rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("error building asset request: %w", err)
	}

	for _, h := range b.headers {
		req.Header.Add(h.name, h.value)
	}

	resolved, err := url.Parse(req.URL.String())
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing request URL: %w", err)
	}
	if !resolved.IsAbs() {
		return nil, nil, fmt.Errorf("request URL %q is not absolute", resolved)
	}

	return req, resolved, nil
}
