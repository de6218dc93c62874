// Package server exposes the intake service over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Skufu/medintake/internal/analysis"
	"github.com/Skufu/medintake/internal/docqa"
	"github.com/Skufu/medintake/internal/intake"
	"github.com/Skufu/medintake/internal/logger"
	"github.com/Skufu/medintake/internal/metrics"
	"github.com/Skufu/medintake/internal/summary"
)

const (
	ServiceName = "medintake"

	defaultMaxBody = 1 << 20 // 1MB for JSON requests
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Options struct {
	MaxBodyBytes   int64
	MaxUploadBytes int64
	CORSOrigins    []string
	StaticDir      string
}

// Deps are the services behind the HTTP handlers. DB may be nil.
type Deps struct {
	Intake   *intake.Controller
	Summary  *summary.Generator
	Analyzer *analysis.Analyzer
	Docs     *docqa.Asker
	DB       HealthChecker
}

func NewRouter(deps Deps, opts Options) *gin.Engine {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}

	router := gin.New()
	router.Use(
		logger.GinMiddleware(),
		gin.Recovery(),
		otelgin.Middleware(ServiceName),
		cors.New(corsConfig(opts.CORSOrigins)),
	)

	if root := detectStaticRoot(opts.StaticDir); root != "" {
		router.Static("/static", root)
		router.StaticFile("/", filepath.Join(root, "index.html"))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", readyz(deps.DB))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	h := &handlers{deps: deps}
	api := router.Group("/api", limitBodySize(opts.MaxBodyBytes))
	{
		api.GET("/questions", h.listQuestions)
		api.POST("/analysis", h.analyze)

		api.POST("/sessions", h.startSession)
		api.GET("/sessions/:id", h.getSession)
		api.DELETE("/sessions/:id", h.deleteSession)
		api.POST("/sessions/:id/reset", h.resetSession)
		api.POST("/sessions/:id/chat", h.chat)
		api.POST("/sessions/:id/follow-up", h.followUp)
		api.GET("/sessions/:id/summary", h.summary)
		api.GET("/sessions/:id/report", h.report)
		api.POST("/sessions/:id/documents/ask", h.askDocument)
	}
	// Uploads get their own, larger limit.
	router.POST("/api/sessions/:id/documents", limitBodySize(opts.MaxUploadBytes), h.uploadDocument)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}

func readyz(db HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := db.Ping(ctx); err != nil {
			dbStatus = fmt.Sprintf("unhealthy: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"db":     dbStatus,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"db":     dbStatus,
		})
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// detectStaticRoot returns dir, or the first of the working directory and
// its two parents holding a web/index.html. Empty means no UI is served.
func detectStaticRoot(dir string) string {
	if dir != "" {
		if fileExists(filepath.Join(dir, "index.html")) {
			return dir
		}
		logger.Log.Warnf("STATIC_DIR %s has no index.html, UI disabled", dir)
		return ""
	}

	startDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, d := range candidates {
		web := filepath.Join(d, "web")
		if fileExists(filepath.Join(web, "index.html")) {
			return web
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
