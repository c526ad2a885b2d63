package emulator

import (
	"context"
	"log"
	"net/http"
	"time"
)

var srv *http.Server

// Serve runs an emulator on addr until Close is called.
func Serve(addr string, opts ...Option) {
	e := NewEngine(opts...)

	srv = &http.Server{
		Addr:    addr,
		Handler: e,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// Close shuts the emulator server down.
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
	defer cancel()
}
