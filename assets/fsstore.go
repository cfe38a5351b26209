package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const indexPage = "index.html"

// FSStore serves static assets out of an fs.FS. Missing files become 404
// responses rather than errors; only genuine read failures surface as
// dispatch errors.
type FSStore struct {
	logger *zap.Logger
	root   fs.FS
}

func NewFSStore(logger *zap.Logger, root fs.FS) (*FSStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if root == nil {
		return nil, fmt.Errorf("root cannot be nil")
	}
	return &FSStore{
		logger: logger.With(zap.String("component", "fsstore")),
		root:   root,
	}, nil
}

var _ Dispatcher = (*FSStore)(nil)

func (s *FSStore) ServeStaticFile(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch req.Method {
	case http.MethodGet, http.MethodHead:
	default:
		return newResponse(req, http.StatusMethodNotAllowed, nil, []byte("405 Method Not Allowed")), nil
	}

	name := strings.TrimPrefix(path.Clean(req.URL.Path), "/")
	if name == "" || strings.HasSuffix(req.URL.Path, "/") {
		name = path.Join(name, indexPage)
	}

	if !fs.ValidPath(name) {
		return newResponse(req, http.StatusNotFound, nil, []byte("404 Not Found")), nil
	}

	data, err := fs.ReadFile(s.root, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newResponse(req, http.StatusNotFound, nil, []byte("404 Not Found")), nil
		}
		s.logger.Error("Failed to read asset", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("error reading asset %q: %w", name, err)
	}

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}

	header := http.Header{}
	header.Set("Content-Type", ctype)

	if req.Method == http.MethodHead {
		resp := newResponse(req, http.StatusOK, header, nil)
		resp.ContentLength = int64(len(data))
		resp.Header.Set("Content-Length", strconv.Itoa(len(data)))
		return resp, nil
	}

	return newResponse(req, http.StatusOK, header, data), nil
}

func newResponse(req *http.Request, status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = http.Header{}
		header.Set("Content-Type", "text/plain; charset=utf-8")
	}
	header.Set("Content-Length", strconv.Itoa(len(body)))
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
