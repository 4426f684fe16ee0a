package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/jacentio/arbor/config"
)

// OriginsFunc returns the origins allowed to make credentialed cross-site
// requests.
type OriginsFunc func(ctx context.Context) ([]string, error)

// CORS enables cross-site requests from allowed origins. Requests from other
// origins pass through without CORS headers.
func CORS(origins OriginsFunc, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		allowed, err := origins(c.Request.Context())
		if err != nil {
			logger.Warn("failed to read allowed origins", "error", err)
			c.Next()
			return
		}
		if slices.Contains(allowed, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Expose-Headers", "Set-Cookie")
			c.Header("Vary", "Origin")
		}
		c.Next()
	}
}

// NewRouter returns an engine serving the config API under /config with CORS
// for the configured allowed origins.
func NewRouter(cfg *config.Config, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), CORS(cfg.AllowedOrigins, logger), logErrors(logger))

	r.NoRoute(func(c *gin.Context) {
		abort(c, Errorf(NotFound, "%s", c.Request.URL.Path))
	})
	r.NoMethod(func(c *gin.Context) {
		abort(c, Errorf(MethodNotAllowed, "%s", c.Request.Method))
	})

	group := r.Group("/config")
	{
		group.GET("", ListConfigHandler(cfg))
		group.GET("/:name", GetConfigHandler(cfg))
		group.PUT("/:name", PutConfigHandler(cfg))
		group.DELETE("/:name", DeleteConfigHandler(cfg))
	}
	return r
}

// logErrors logs errors handlers attached to the context.
func logErrors(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, err := range c.Errors {
			logger.Error("request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err.Err,
			)
		}
	}
}

// configBody is the JSON representation of one setting.
type configBody struct {
	Name    string `json:"name"`
	Value   any    `json:"value"`
	Changed *bool  `json:"changed,omitempty"`
}

// GET /config
func ListConfigHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := cfg.All(c.Request.Context())
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, all)
	}
}

// GET /config/:name
func GetConfigHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		v, err := cfg.Value(c.Request.Context(), name)
		if err != nil {
			abort(c, err)
			return
		}
		if v == nil {
			abort(c, Errorf(ResourceNotFound, "config property '%s'", name))
			return
		}
		c.JSON(http.StatusOK, configBody{Name: name, Value: v})
	}
}

// PUT /config/:name
func PutConfigHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		var body struct {
			Value any `json:"value"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			abort(c, Errorf(InvalidParam, "body: %v", err))
			return
		}
		if body.Value == nil {
			abort(c, Errorf(ParamNotFound, "value"))
			return
		}
		changed, err := cfg.Set(c.Request.Context(), name, body.Value)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, configBody{Name: name, Value: body.Value, Changed: &changed})
	}
}

// DELETE /config/:name
func DeleteConfigHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		removed, err := cfg.Unset(c.Request.Context(), name)
		if err != nil {
			abort(c, err)
			return
		}
		if !removed {
			abort(c, Errorf(ResourceNotFound, "config property '%s'", name))
			return
		}
		c.Status(http.StatusNoContent)
	}
}
