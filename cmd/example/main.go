package main

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	_ "net/http/pprof"
	"os"

	"go.miragespace.co/umbra"
	"go.miragespace.co/umbra/assets"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	args := os.Args

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	assetsDir := "./public"
	if len(args) > 1 {
		assetsDir = args[1]
	}

	store, err := assets.NewFSStore(logger, os.DirFS(assetsDir))
	if err != nil {
		panic(err)
	}

	rt, err := umbra.NewRuntime(logger, store, 1)
	if err != nil {
		panic(err)
	}
	defer rt.Stop(false)

	router := chi.NewRouter()
	router.Mount("/debug", middleware.Profiler())
	router.Mount("/reload", http.HandlerFunc(reloadScript(logger, rt)))
	router.With(rt.Middleware).Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "worker did not produce a response")
	}))

	addr := ":8081"
	if len(args) > 2 {
		addr = args[2]
	}

	logger.Info("ready", zap.String("addr", addr), zap.String("assets", assetsDir))

	http.ListenAndServe(addr, router)
}

func reloadScript(logger *zap.Logger, rt *umbra.Runtime) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var form *multipart.Reader
		form, err := r.MultipartReader()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "Request is not multipart")
			return
		}

		var p *multipart.Part
		p, err = form.NextPart()
		if err != nil && err != io.EOF {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, err)
			return
		}

		if p.FormName() != "file" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "Expecting \"file\" field in request")
			return
		}

		script, err := io.ReadAll(p)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Failed to read script from body: %v", err)
			return
		}

		err = rt.LoadScript(p.FileName(), string(script), false)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Failed to load script: %v", err)
			return
		}

		logger.Info("Script reloaded", zap.String("script", p.FileName()))
		fmt.Fprint(w, "OK")
	}
}
