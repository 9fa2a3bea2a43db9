package routes

import (
	"net/http"

	"github.com/sandor-zhong/baby-chengcheng/controllers"
	"github.com/sandor-zhong/baby-chengcheng/middlewares"
	"github.com/sandor-zhong/baby-chengcheng/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the router needs. Gatherer may be nil to skip /metrics.
type Deps struct {
	Secret         []byte
	SecureCookie   bool
	MaxUploadBytes int64
	StaticDir      string
	Log            *zap.Logger
	Metrics        *services.Metrics
	Gatherer       prometheus.Gatherer

	Auth     *controllers.AuthController
	Events   *controllers.EventController
	Moments  *controllers.MomentController
	Profile  *controllers.ProfileController
	AI       *controllers.AIController
	Realtime *controllers.RealtimeController
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.Recovery(d.Log), middlewares.RequestLogger(d.Log), middlewares.Metrics(d.Metrics))
	r.Use(middlewares.Sessions(d.Secret, d.SecureCookie))
	if d.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = d.MaxUploadBytes
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	if d.StaticDir != "" {
		r.Static("/static", d.StaticDir)
	}

	r.GET("/api/server_time", d.Events.ServerTime)
	r.GET("/api/flash", controllers.Flash)

	// Public auth routes
	auth := r.Group("/auth")
	{
		auth.POST("/register", d.Auth.Register)
		auth.POST("/login", d.Auth.Login)
		auth.POST("/logout", d.Auth.Logout)
		auth.POST("/forgot", d.Auth.ForgotPassword)
		auth.POST("/reset", d.Auth.ResetPassword)
	}

	// Read-only views; anonymous visitors get empty data
	open := r.Group("/api")
	open.Use(middlewares.OptionalAuth(d.Secret))
	{
		open.GET("/dashboard", d.Events.Dashboard)
		open.GET("/last", d.Events.Last)
		open.GET("/feed_series", d.Events.FeedSeries)
		open.GET("/diaper_series", d.Events.DiaperSeries)
		open.GET("/feed_daily", d.Events.FeedDaily)
		open.GET("/history", d.Events.History)
		open.GET("/moments/load", d.Moments.Load)
		open.GET("/moments/search", d.Moments.Search)
		open.GET("/profile", d.Profile.GetProfile)
	}

	// Protected routes
	user := r.Group("/")
	user.Use(middlewares.AuthMiddleware(d.Secret), limitBody(d.MaxUploadBytes))
	{
		user.POST("/record_feed", d.Events.RecordFeed)
		user.POST("/record_diaper", d.Events.RecordDiaper)
		user.POST("/undo_last", d.Events.UndoLast)
		user.POST("/event/:id/delete", d.Events.DeleteEvent)

		user.POST("/auth/password", d.Auth.ChangePassword)

		user.POST("/profile", d.Profile.UpdateProfile)
		user.POST("/avatar/upload", d.Profile.UploadAvatar)
		user.POST("/cover/upload", d.Profile.UploadCover)

		user.POST("/moments/create", d.Moments.Create)
		user.GET("/api/moments/:id", d.Moments.Detail)
		user.POST("/moments/:id/edit", d.Moments.Edit)
		user.POST("/moments/:id/delete", d.Moments.Delete)
		user.POST("/moments/:id/favorite", d.Moments.ToggleFavorite)
		user.GET("/moments/:id/share", d.Moments.Share)

		user.POST("/api/ai/chat", d.AI.Chat)
		user.POST("/api/ai/analyze", d.AI.Analyze)
		user.POST("/api/ai/health", d.AI.Health)

		user.GET("/ws", d.Realtime.EventsWS)
	}

	return r
}

// limitBody caps request bodies slightly above the upload limit so multipart
// overhead still fits.
func limitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max+1<<20)
		}
		c.Next()
	}
}
