package routes

import (
	"context"

	"thaliya-gateway/config"
	"thaliya-gateway/constants"
	authController "thaliya-gateway/controllers/auth"
	chatbotController "thaliya-gateway/controllers/chatbot"
	otpController "thaliya-gateway/controllers/otp"
	tenantController "thaliya-gateway/controllers/tenant"
	"thaliya-gateway/httpServices/delivery"
	"thaliya-gateway/logger"
	"thaliya-gateway/middleware"
	"thaliya-gateway/services/authflow"
	"thaliya-gateway/services/authtemp"
	"thaliya-gateway/services/chat"
	"thaliya-gateway/services/credentials"
	otpsvc "thaliya-gateway/services/otp"
	"thaliya-gateway/services/ratelimit"
	sessionsvc "thaliya-gateway/services/session"
	"thaliya-gateway/services/token"
	usersvc "thaliya-gateway/services/user"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Services bundles the long-lived components constructed at startup. One
// instance of each is built here and passed explicitly; nothing is a
// package-level singleton.
type Services struct {
	Sessions     *sessionsvc.Manager
	Temp         *authtemp.Store
	OTP          *otpsvc.Service
	Limiter      *ratelimit.Limiter
	Orchestrator *authflow.Orchestrator
}

// SetupRoutes wires every endpoint of the gateway.
func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config) *Services {
	asyncLogger := logger.NewAsyncLogger(db)
	go asyncLogger.ProcessLog()

	credStore := credentials.NewStore(cfg)
	issuer := token.NewIssuer(cfg)
	otpService := otpsvc.NewService(db, cfg.OTPValidity)
	limiter := ratelimit.NewLimiter(db, cfg.RateLimitWindow, cfg.MaxOTPPerWindow, cfg.BlockDuration, cfg.MinRetryAfter)
	sessions := sessionsvc.NewManager(db, cfg.SessionTTL)
	tempStore := authtemp.NewStore(db, cfg.AuthTempTTL)
	users := usersvc.NewService(db)
	sender := delivery.NewRouter(cfg)
	responder := chat.NewResponder(context.Background(), cfg.GeminiAPIKey)

	orchestrator := &authflow.Orchestrator{
		Sessions:       sessions,
		Temp:           tempStore,
		OTP:            otpService,
		Limiter:        limiter,
		Users:          users,
		Delivery:       sender,
		Chat:           responder,
		WizardAttempts: cfg.WizardOTPAttempts,
	}

	authCtrl := authController.NewAuthController(credStore, issuer, asyncLogger)
	otpCtrl := otpController.NewOTPController(otpService, limiter, sender, cfg)
	chatbotCtrl := chatbotController.NewChatbotController(sessions, orchestrator)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "thaliya-gateway",
			"status":  "running",
		})
	})

	/*=============================================================================
	| Service-to-service auth
	===============================================================================*/
	authGroup := app.Group("/auth")
	authGroup.Post("/token", authCtrl.IssueToken)
	authGroup.Post("/verify", middleware.ServiceAuth(issuer), authCtrl.VerifyToken)

	/*=============================================================================
	| Standalone OTP API
	===============================================================================*/
	otpGroup := authGroup.Group("/otp")
	otpGroup.Post("/request", otpCtrl.RequestOTP)
	otpGroup.Post("/verify", otpCtrl.VerifyOTP)
	otpGroup.Post("/resend", otpCtrl.ResendOTP)
	otpGroup.Get("/rate-limit/:identifier", otpCtrl.RateLimitStatus)
	otpGroup.Delete("/cancel/:otp_id", otpCtrl.CancelOTP)
	otpGroup.Get("/status/:session_id", otpCtrl.AuthStatus)

	/*=============================================================================
	| Guest chat
	===============================================================================*/
	chatbotGroup := app.Group("/chatbot")
	chatbotGroup.Post("/guest/session", chatbotCtrl.CreateGuestSession)
	chatbotGroup.Post("/guest", chatbotCtrl.GuestChat)

	/*=============================================================================
	| Tenant routes, gated by service token
	===============================================================================*/
	servicesGroup := app.Group("/services", middleware.ServiceAuth(issuer))
	for _, serviceName := range constants.AllServices {
		ctrl := tenantController.NewTenantController(serviceName)
		tenantGroup := servicesGroup.Group("/"+serviceName, middleware.RequireService(serviceName))
		tenantGroup.Get("/health", ctrl.Health)
		tenantGroup.Get("/info", ctrl.Info)
		tenantGroup.Post("/process", ctrl.Process)
	}

	return &Services{
		Sessions:     sessions,
		Temp:         tempStore,
		OTP:          otpService,
		Limiter:      limiter,
		Orchestrator: orchestrator,
	}
}
