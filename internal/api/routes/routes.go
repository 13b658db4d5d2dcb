package routes

import (
	"net/http"
	"strings"
	"time"

	"authtrail/internal/api/handlers"
	"authtrail/internal/api/middleware"
	"authtrail/internal/audit"
	"authtrail/internal/config"
	"authtrail/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminRole may read the audit streams.
const AdminRole = "ADMIN"

// Services holds the long-lived components the routes are built from.
type Services struct {
	Directory  *services.UserDirectory
	Sessions   *services.SessionManager
	Carrier    *services.SessionCarrier
	Gate       *services.AuthenticationGate
	AuditStore *audit.GormStore
	Trail      *audit.Trail
}

// NewServices wires the services on top of db.
func NewServices(db *gorm.DB, cfg *config.Config) (*Services, error) {
	verifier, err := services.NewBcryptVerifier(cfg.Security.BcryptCost)
	if err != nil {
		return nil, err
	}

	store := audit.NewGormStore(db, cfg.Audit.BatchSize)
	trail := audit.New(store, cfg.Audit, time.Now)
	directory := services.NewUserDirectory(db, verifier)

	return &Services{
		Directory:  directory,
		Sessions:   services.NewSessionManager(db, cfg.Session.TTL),
		Carrier:    services.NewSessionCarrier(cfg.Session),
		Gate:       services.NewAuthenticationGate(directory, verifier, trail.LoginAttempts),
		AuditStore: store,
		Trail:      trail,
	}, nil
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, svc *Services) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Gate, svc.Sessions, svc.Carrier, svc.Directory)
	userHandler := handlers.NewUserHandler(svc.Directory, svc.Sessions)
	auditHandler := handlers.NewAuditHandler(svc.AuditStore)

	authenticator := middleware.NewAuthenticator(svc.Sessions, svc.Carrier, svc.Directory)
	interceptor := middleware.NewRequestInterceptor(svc.Trail.Interactions, authenticator)

	// The interceptor goes first so every request is recorded.
	r.Use(interceptor.Handler())
	r.Use(middleware.RequestLogger())

	loginHandlers := []gin.HandlerFunc{authHandler.Login}
	if cfg.Security.RateLimit.Enabled {
		limiter := middleware.NewIPRateLimiter(cfg.Security.RateLimit)
		loginHandlers = append([]gin.HandlerFunc{middleware.RateLimit(limiter)}, loginHandlers...)
	}

	// Public routes
	r.GET("/health", handlers.Health)
	r.GET("/", handlers.Home)
	r.GET("/login", authHandler.LoginPage)
	r.POST("/login", loginHandlers...)
	r.GET("/register", authHandler.RegisterPage)
	r.POST("/register", authHandler.Register)
	r.GET("/logout", authHandler.Logout)
	r.POST("/logout", authHandler.Logout)

	// Protected pages
	r.GET("/dashboard", authenticator.RequirePageSession(), handlers.Dashboard)

	// Protected API
	api := r.Group("/api")
	api.Use(authenticator.RequireSession())
	{
		api.GET("/me", userHandler.GetMe)
		api.GET("/sessions", userHandler.GetSessions)
		api.POST("/sessions/:id/revoke", userHandler.RevokeSession)

		auditGroup := api.Group("/audit", middleware.RequireRole(svc.Directory, AdminRole))
		{
			auditGroup.GET("/login-attempts", auditHandler.GetLoginAttempts)
			auditGroup.GET("/interactions", auditHandler.GetInteractions)
		}

		users := api.Group("/admin/users", middleware.RequireRole(svc.Directory, AdminRole))
		{
			users.GET("", userHandler.GetUsers)
			users.PUT("/:id/status", userHandler.UpdateUserStatus)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}
