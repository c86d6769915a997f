// file: internal/server/server.go
// version: 1.6.0
// guid: 7e4a1d9b-5c2f-4b8e-a3d6-0f9c7b2e5a41

package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookloft/internal/config"
	"bookloft/internal/database"
	"bookloft/internal/metadata"
	"bookloft/internal/metrics"
	"bookloft/internal/server/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// MetadataFetcher is the slice of the metadata facade the HTTP layer needs.
// Tests substitute a fake.
type MetadataFetcher interface {
	Fetch(ctx context.Context, isbn string, provider metadata.Provider) (*metadata.BookMetadata, error)
	Providers() []metadata.Provider
	Default() metadata.Provider
	Resolve(token string) (metadata.Provider, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	store      database.Store
	fetcher    MetadataFetcher
	cfg        *config.Config
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, store database.Store, fetcher MetadataFetcher) (*Server, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestMetrics())

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	// Register metrics (idempotent)
	metrics.Register()

	server := &Server{
		router:  router,
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
	}

	server.setupRoutes()

	return server, nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until an interrupt signal arrives.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:           s.cfg.Server.ListenAddr,
		Handler:        s.router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.Printf("[INFO] Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Refresh the book count gauge periodically while running.
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if count, err := s.store.CountBooks(); err == nil {
					metrics.SetBooks(count)
				} else {
					log.Printf("[DEBUG] Failed to count books: %v", err)
				}
			case <-quit:
				return
			}
		}
	}()

	<-quit

	log.Println("Shutting down server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited")
	return nil
}

// setupRoutes configures all the routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint (standard path)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Covers and the public ongoing page are reachable without the auth header.
	s.router.GET("/covers/:user/:book", s.handleCover)
	s.router.GET("/public/:user/ongoing", s.handlePublicOngoing)

	authed := s.router.Group("/", middleware.TrustedHeader(s.store, s.cfg.Server.AuthHeader))
	{
		authed.GET("", s.handleIndex)
		authed.GET("add", s.handleAddForm)
		authed.POST("add", s.handleAddBook)
		authed.GET("book/:id", s.handleBook)
		authed.GET("book/:id/edit", s.handleEditForm)
		authed.POST("book/:id/edit", s.handleEditBook)
		authed.POST("book/:id/delete", s.handleDeleteBook)
		authed.GET("series", s.handleSeriesList)
		authed.GET("series/:id", s.handleSeries)
		authed.GET("series/:id/edit", s.handleSeriesEditForm)
		authed.POST("series/:id/edit", s.handleSeriesEdit)
		authed.GET("author/:id", s.handleAuthor)
		authed.GET("unread", s.handleUnread)
		authed.GET("ongoing", s.handleOngoing)
		authed.GET("profile", s.handleProfile)
		authed.POST("profile", s.handleProfileUpdate)
	}
}

// requestMetrics records per-route request counts and latencies.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"date": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"language": languageName,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"num": func(n *int) string {
			if n == nil {
				return ""
			}
			return strconv.Itoa(*n)
		},
		"ints": func(ns []int) string {
			parts := make([]string, len(ns))
			for i, n := range ns {
				parts[i] = strconv.Itoa(n)
			}
			return strings.Join(parts, ", ")
		},
	}
}
