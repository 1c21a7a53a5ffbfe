package server

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/spark-dating/spark-server/internal/app"
	"github.com/spark-dating/spark-server/internal/auth"
	"github.com/spark-dating/spark-server/internal/config"
	"github.com/spark-dating/spark-server/internal/presence"
	"github.com/spark-dating/spark-server/internal/repository"
	"github.com/spark-dating/spark-server/internal/service/chat"
	"github.com/spark-dating/spark-server/internal/service/swipe"
	"github.com/spark-dating/spark-server/internal/service/unread"
	"github.com/spark-dating/spark-server/internal/storage"
)

// Server wires every service behind the HTTP + websocket surface.
type Server struct {
	appCtx   *app.AppContext
	cfg      *config.Config
	tokens   *auth.TokenManager
	pending  *auth.PendingStore
	users    *repository.UserRepository
	registry *presence.Registry

	swipes  *swipe.Service
	chat    *chat.Service
	unread  *unread.Service
	objects storage.ObjectStore
}

// New assembles the server from already-constructed services.
func New(
	appCtx *app.AppContext,
	cfg *config.Config,
	registry *presence.Registry,
	swipes *swipe.Service,
	chatSvc *chat.Service,
	unreadSvc *unread.Service,
	objects storage.ObjectStore,
) *Server {
	return &Server{
		appCtx:   appCtx,
		cfg:      cfg,
		tokens:   auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL),
		pending:  auth.NewPendingStore(cfg.Signup.OTPTTL),
		users:    repository.NewUserRepository(appCtx.DB),
		registry: registry,
		swipes:   swipes,
		chat:     chatSvc,
		unread:   unreadSvc,
		objects:  objects,
	}
}

// Register attaches all routes to the gin engine.
func (s *Server) Register(r *gin.Engine) {
	r.GET("/ws", s.handleWS)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", s.handleSignup)
	authGroup.POST("/verify-otp", s.handleVerifyOTP)
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/logout", s.handleLogout)
	authGroup.GET("/me", s.requireAuth(), s.handleMe)

	matches := api.Group("/matches", s.requireAuth())
	matches.POST("/swipe-right/:userId", s.handleSwipeRight)
	matches.POST("/swipe-left/:userId", s.handleSwipeLeft)
	matches.GET("", s.handleGetMatches)

	users := api.Group("/users", s.requireAuth())
	users.GET("/profiles", s.handleGetProfiles)
	users.PUT("/profile", s.handleUpdateProfile)

	messages := api.Group("/messages", s.requireAuth())
	messages.POST("/send", s.handleSendMessage)
	messages.GET("/conversation/:userId", s.handleGetConversation)
	messages.POST("/read/:userId", s.handleMarkConversationRead)
	messages.DELETE("/:messageId", s.handleDeleteMessage)
	messages.GET("/unread", s.handleGetUnreadCounts)

	uploads := api.Group("/uploads", s.requireAuth())
	uploads.POST("/presign", s.handlePresignUpload)
}

// Registrar is a common interface for all HTTP service registrars.
type Registrar interface {
	Register(r *gin.Engine)
}

// StartHTTPServer boots the gin engine and registers all provided services.
func StartHTTPServer(cfg *config.Config, registrars ...Registrar) error {
	if cfg.App.ENV != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	for _, r := range registrars {
		r.Register(engine)
	}

	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	return engine.Run(addr)
}
