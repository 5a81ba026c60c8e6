package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/team-spoved/spoved/api"
	"github.com/team-spoved/spoved/internal/handler"
)

const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathSwagger = "/swagger"
	PathAPI     = "/api/v1"
)

type Options struct {
	CORSOrigins  []string
	AuthRequired bool
	JWTSecret    string
	Log          zerolog.Logger
}

type Handlers struct {
	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Tickets *handler.TicketHandler
	Media   *handler.MediaHandler
}

func New(opts Options, h Handlers) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestID(), handler.RequestLogger(opts.Log))
	if len(opts.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = opts.CORSOrigins
		cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", handler.HeaderRequestID)
		cfg.ExposeHeaders = []string{handler.HeaderRequestID}
		r.Use(cors.New(cfg))
	}

	r.GET(PathHealth, h.Health.Health)
	r.GET(PathReady, h.Health.Ready)
	r.GET(PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, PathSwagger+"/") })
	r.GET(PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = PathSwagger + "/index.html"
			c.Request.RequestURI = PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(PathSwagger+"/openapi.json"))(c)
	})

	v1 := r.Group(PathAPI)
	{
		v1.POST("/auth/register", h.Auth.Register)
		v1.POST("/auth/login", h.Auth.Login)
	}

	secured := v1.Group("")
	if opts.AuthRequired {
		secured.Use(handler.Auth(opts.JWTSecret))
	}
	{
		if opts.AuthRequired {
			secured.GET("/auth/me", h.Auth.Me)
		}

		secured.GET("/users", h.Users.List)
		secured.GET("/users/:id", h.Users.Get)
		secured.POST("/users", h.Users.Create)

		secured.GET("/tickets", h.Tickets.List)
		secured.GET("/tickets/:id", h.Tickets.Get)
		secured.POST("/tickets", h.Tickets.Create)
		secured.PUT("/tickets/:id/assign", h.Tickets.Assign)
		secured.PUT("/tickets/:id/status", h.Tickets.UpdateStatus)
		secured.PUT("/tickets/:id/update", h.Tickets.Update)

		secured.GET("/media", h.Media.List)
		secured.GET("/media/:id", h.Media.Get)
		secured.POST("/media", h.Media.Create)
		secured.PUT("/media/:id/analyzed", h.Media.UpdateAnalyzed)
		secured.PUT("/media/:id/result", h.Media.UpdateResult)
		secured.PUT("/media/:id/reason", h.Media.UpdateReason)
	}

	return r
}
