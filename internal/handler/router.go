package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RouterConfig holds router-level settings.
type RouterConfig struct {
	AllowedOrigins []string
	OTPPerMinute   float64
	Metrics        http.Handler
}

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Auth     *AuthHandler
	LinkedIn *LinkedInHandler
	Account  *AccountHandler
	Redirect *RedirectHandler
	Backend  *BackendHandler
	Sessions *Sessions
}

// NewRouter builds the echo instance serving every portal route.
func NewRouter(h Handlers, cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Validator = NewAppValidator()

	e.Use(middleware.RequestID())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType},
		ExposeHeaders:    []string{echo.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	e.Use(h.Sessions.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return JSON(c, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	limited := RateLimit(cfg.OTPPerMinute)

	auth := e.Group("/api/auth")
	auth.GET("/signin/:provider", h.Auth.SignIn)
	auth.POST("/callback/credentials", h.Auth.Credentials, limited)
	auth.GET("/callback/:provider", h.Auth.Callback)
	auth.GET("/session", h.Auth.Session)
	auth.POST("/signout", h.Auth.SignOut)
	auth.POST("/login", h.Auth.Login, limited)
	auth.POST("/linkedin/exchange", h.LinkedIn.Exchange)
	auth.POST("/send-otp", h.Account.SendOTP, limited)
	auth.POST("/verify-otp", h.Account.VerifyOTP, limited)
	auth.POST("/register", h.Account.Register)

	user := e.Group("/api/user", RequireSession())
	user.POST("/update-details", h.Account.UpdateDetails)
	user.POST("/save-onboarding", h.Account.SaveOnboarding)

	backend := e.Group("/api/backend")
	backend.POST("/verify-email", h.Backend.VerifyEmail, limited)
	backend.POST("/send-otp", h.Backend.SendOTP, limited)
	backend.POST("/resend", h.Backend.ResendOTP, limited)
	backend.POST("/signup", h.Backend.Signup)
	backend.POST("/forgot", h.Backend.ForgotPassword, limited)
	backend.POST("/confirm", h.Backend.ConfirmPassword, limited)
	backend.POST("/profile", h.Backend.SubmitProfile, RequireSession())
	backend.GET("/list/:title", h.Backend.ListData)

	e.GET("/auth/continue", h.Redirect.Continue)
	e.GET("/auth/redirect/:userId", h.Redirect.LegacyRedirect)

	return e
}
