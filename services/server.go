package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the HTTP surface of the search service.
type Server struct {
	echo   *echo.Echo
	ingest *IngestHandler
	job    *JobHandler
	search *SearchHandler
}

func ProvideServer(ingest *IngestHandler, job *JobHandler, search *SearchHandler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", TenantHeader},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.POST("/documents", ingest.UploadDocuments)
	v1.POST("/texts", ingest.AddTexts)
	v1.GET("/jobs/:id", job.GetJob)
	v1.POST("/search", search.Search)

	return &Server{echo: e, ingest: ingest, job: job, search: search}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down HTTP server")
		err := s.echo.Shutdown(context.Background())
		s.ingest.Cleanup()
		return err
	}
}

func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	logger.Error("Request failed",
		zap.Int("status", code),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Error(err))
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}
