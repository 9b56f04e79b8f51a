// Package httpapi exposes the triage, approval, and push surfaces over
// HTTP.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oakline/upkeep/internal/approval"
	"github.com/oakline/upkeep/internal/notify"
	"github.com/oakline/upkeep/internal/triage"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Triage     *triage.Manager
	Approvals  *approval.Service
	Dispatcher *notify.Dispatcher
	Registry   *notify.Registry
	Port       int
	Out        io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := newRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with all routes registered. Split from
// Start so tests can drive it with httptest.
func newRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Triage == nil {
		return nil, fmt.Errorf("httpapi: triage manager is required")
	}
	if opts.Approvals == nil {
		return nil, fmt.Errorf("httpapi: approval service is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("httpapi: registry is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)
	return router, nil
}
