// Package server is a reference NL2SQL backend: it answers POST /nl2sql/
// by asking an AI provider for SQL, vetting it, running it read-only
// against PostgreSQL and replying in the same JSON contract the chat
// client consumes.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DachengChen/sqlchat/applog"
	"github.com/DachengChen/sqlchat/db"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Generator produces SQL for a question. ai.Provider satisfies it.
type Generator interface {
	GenerateSQL(ctx context.Context, schemaContext string, question string) (string, error)
	Name() string
}

// Database runs vetted SQL and describes the schema. *db.DB satisfies it.
type Database interface {
	Execute(ctx context.Context, sql string, maxRows int) (*db.Result, error)
	SchemaContext(ctx context.Context) (string, error)
}

// Options tunes the server. Zero values get defaults.
type Options struct {
	MaxRows        int           // row cap per query (default 50)
	CacheTTL       time.Duration // generated SQL + schema cache lifetime; <= 0 disables caching
	AllowedOrigins []string      // CORS origins; empty allows all
}

// Server holds the HTTP routes and their dependencies.
type Server struct {
	gen     Generator
	db      Database
	maxRows int
	cache   *cache.Cache
	engine  *gin.Engine
}

// New wires the routes.
func New(gen Generator, database Database, opts Options) *Server {
	if opts.MaxRows <= 0 {
		opts.MaxRows = 50
	}

	s := &Server{gen: gen, db: database, maxRows: opts.MaxRows}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	engine.GET("/health", s.health)
	engine.POST("/nl2sql/", s.nl2sql)
	engine.POST("/nl2sql", s.nl2sql)

	s.engine = engine
	return s
}

// Handler exposes the routes, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		applog.Event("server", "listening on %s (provider %s)", addr, s.gen.Name())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		applog.Event("server", "shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": s.gen.Name()})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		applog.L().Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
