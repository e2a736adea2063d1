// Package http exposes the plant service over a JSON API.
package http

import (
	"expvar"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plantkeeper/internal/auth"
	"plantkeeper/internal/core"
)

// Deps are the collaborators the router needs. Gatherer may be nil to skip
// /metrics.
type Deps struct {
	Service      *core.Service
	Provider     auth.Provider
	Verifier     auth.Verifier
	Gatherer     prometheus.Gatherer
	AllowOrigins []string
	Logger       *slog.Logger
}

type handler struct {
	svc      *core.Service
	provider auth.Provider
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func SetupRouter(deps Deps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &handler{
		svc:      deps.Service,
		provider: deps.Provider,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	config := cors.DefaultConfig()
	config.AllowOrigins = deps.AllowOrigins
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = []string{"http://localhost:3000"}
	}
	config.AllowCredentials = true
	config.AllowHeaders = []string{"Authorization", "Content-Type", "Origin", "Accept"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	config.MaxAge = 12 * time.Hour
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	router.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	api := router.Group("/api")

	if deps.Provider != nil {
		authGroup := api.Group("/auth")
		authGroup.POST("/anonymous", h.SignInAnonymously)
		authGroup.POST("/login", h.SignIn)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/logout", bearerAuth(deps.Verifier), h.Logout)
		authGroup.GET("/me", bearerAuth(deps.Verifier), h.Me)
	}

	secured := api.Group("", bearerAuth(deps.Verifier))

	plants := secured.Group("/plants")
	plants.POST("", h.CreatePlant)
	plants.GET("", h.ListPlants)
	plants.GET("/:id", h.GetPlant)
	plants.PATCH("/:id", h.UpdatePlant)
	plants.DELETE("/:id", h.DeletePlant)
	plants.POST("/:id/water", h.WaterPlant)
	plants.POST("/:id/favorite", h.ToggleFavorite)
	plants.POST("/:id/owners", h.AddPlantOwners)
	plants.DELETE("/:id/owners/:owner", h.RemovePlantOwner)
	plants.POST("/:id/transfer", h.TransferPlant)
	plants.GET("/:id/schedule", h.PlantSchedule)
	plants.GET("/:id/status", h.PlantStatus)
	plants.PUT("/:id/cover", h.PutPlantCover)
	plants.GET("/:id/cover", h.GetPlantCover)
	plants.GET("/:id/cover/url", h.GetPlantCoverURL)

	rooms := secured.Group("/rooms")
	rooms.POST("", h.CreateRoom)
	rooms.GET("", h.ListRooms)
	rooms.GET("/:id", h.GetRoom)
	rooms.PATCH("/:id", h.UpdateRoom)
	rooms.DELETE("/:id", h.DeleteRoom)
	rooms.POST("/:id/plants/:plantID", h.TogglePlantInRoom)
	rooms.POST("/:id/owners", h.AddRoomOwners)
	rooms.DELETE("/:id/owners/:owner", h.RemoveRoomOwner)
	rooms.POST("/:id/transfer", h.TransferRoom)

	profiles := secured.Group("/profiles")
	profiles.POST("", h.CreateProfile)
	profiles.GET("/:id", h.GetProfile)
	profiles.PATCH("/:id", h.UpdateProfile)
	profiles.DELETE("/:id", h.DeleteProfile)
	profiles.PUT("/:id/image", h.PutProfileImage)
	profiles.POST("/:id/requests/:target", h.RequestFriend)
	profiles.DELETE("/:id/requests/:target", h.UnrequestFriend)
	profiles.POST("/:id/accept/:from", h.AcceptFriend)
	profiles.GET("/:id/relation/:other", h.Relation)

	secured.GET("/schedule", h.MonthSchedule)

	subs := secured.Group("/subscriptions")
	subs.PUT("/:name", h.PutSubscription)
	subs.DELETE("/:name", h.DeleteSubscription)
	subs.GET("/:name/ws", h.StreamSubscription)

	return router
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", args...)
		case status >= http.StatusBadRequest:
			log.Warn("request", args...)
		default:
			log.Debug("request", args...)
		}
	}
}
