package httpserver

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskmanager/internal/handler"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Name        string
	Version     string
	CORSOrigins []string
	// WebDistDir holds the built client; ignored unless it has index.html
	WebDistDir string
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *handler.AuthHandler,
	taskHandler *handler.TaskHandler,
	verifier TokenVerifier,
	db Pinger,
	opts Options,
	logger *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(RequestLogger(logger))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware(opts.CORSOrigins))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.Warn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "name": opts.Name, "version": opts.Version})
	})

	// Public
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)

	// Protected
	protected := api.Group("")
	protected.Use(AuthMiddleware(verifier))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.GET("/tasks", taskHandler.ListTasks)
		protected.POST("/tasks", taskHandler.CreateTask)
		protected.GET("/tasks/:id", taskHandler.GetTask)
		protected.PUT("/tasks/:id", taskHandler.UpdateTask)
		protected.DELETE("/tasks/:id", taskHandler.DeleteTask)
	}

	r.NoRoute(noRoute(opts.WebDistDir, logger))

	return &Router{Engine: r}
}

// noRoute answers unknown /api paths with JSON and everything else with the
// client's index.html when a build is present.
func noRoute(distDir string, logger *zap.Logger) gin.HandlerFunc {
	index := ""
	if distDir != "" {
		candidate := filepath.Join(distDir, "index.html")
		if _, err := os.Stat(candidate); err == nil {
			index = candidate
			logger.Info("Serving web client", zap.String("dir", distDir))
		}
	}
	static := http.Dir(distDir)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
			return
		}
		if index == "" {
			if path == "/" {
				c.String(http.StatusOK, "API online")
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
			return
		}

		if path != "/" {
			if f, err := static.Open(path); err == nil {
				stat, statErr := f.Stat()
				f.Close()
				if statErr == nil && !stat.IsDir() {
					c.FileFromFS(path, static)
					return
				}
			}
		}
		c.File(index)
	}
}
