package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/ShipLog-Showcase/showcase-backend/internal/api/http"
	"github.com/ShipLog-Showcase/showcase-backend/internal/api/http/middleware"
	"github.com/ShipLog-Showcase/showcase-backend/internal/auth"
	authhttp "github.com/ShipLog-Showcase/showcase-backend/internal/auth/http"
	commentshttp "github.com/ShipLog-Showcase/showcase-backend/internal/comments/http"
	projectshttp "github.com/ShipLog-Showcase/showcase-backend/internal/projects/http"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string
	DB             *pgxpool.Pool
	Redis          *redis.Client

	Resolver *auth.Resolver
	Limiter  *middleware.RateLimiter
	Auth     *authhttp.Handler
	Projects *projectshttp.Handler
	Comments *commentshttp.Handler
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(cors.New(corsConfig(dep.AllowedOrigins)))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")
	api.Use(dep.Resolver.WithUser())

	// Mutations need a signed-in user and share one rate limit per user.
	guard := []gin.HandlerFunc{auth.RequireUser()}
	if dep.Limiter != nil {
		guard = append(guard, dep.Limiter.Middleware())
	}

	dep.Auth.Register(api.Group("/auth"))

	projectsGroup := api.Group("/projects")
	dep.Projects.Register(projectsGroup, guard...)
	dep.Comments.RegisterProjectRoutes(projectsGroup, guard...)
	dep.Projects.RegisterDashboard(api, auth.RequireUser())

	dep.Comments.Register(api.Group("/comments"), guard...)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-User-Id", "X-User-Email", "X-User-Name"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
