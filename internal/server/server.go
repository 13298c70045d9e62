package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"bookexchange/internal/app"
	"bookexchange/internal/ratelimit"
	"bookexchange/internal/util"
	"bookexchange/pkg/domain"
)

const (
	contextUserKey  = "user"
	contextTokenKey = "token"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// SignupLimiter and LoginLimiter are optional; nil disables limiting.
	SignupLimiter  ratelimit.Limiter
	LoginLimiter   ratelimit.Limiter
	TrustedProxies *util.TrustedProxies
	CORSOrigins    []string
	CookieName     string
	CookieSecure   bool
	MaxUploadBytes int64
	// MediaDir is served under /media when blobs are stored locally.
	MediaDir string
}

// Server exposes HTTP endpoints for the exchange.
type Server struct {
	app           *app.App
	echo          *echo.Echo
	validate      *validator.Validate
	signupLimiter ratelimit.Limiter
	loginLimiter  ratelimit.Limiter
	trusted       *util.TrustedProxies
	cookieName    string
	cookieSecure  bool
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "bookex_session"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		app:           cfg.App,
		echo:          e,
		validate:      newValidator(),
		signupLimiter: cfg.SignupLimiter,
		loginLimiter:  cfg.LoginLimiter,
		trusted:       cfg.TrustedProxies,
		cookieName:    cfg.CookieName,
		cookieSecure:  cfg.CookieSecure,
	}
	e.HTTPErrorHandler = s.handleError

	// Multipart bodies carry one image plus form fields.
	bodyLimitKB := (cfg.MaxUploadBytes + 1<<20) / 1024
	e.Use(
		echo.WrapMiddleware(util.WithRequestID),
		echo.WrapMiddleware(util.WithRequestLog(cfg.TrustedProxies)),
		echo.WrapMiddleware(util.WithSecurityHeaders),
		echo.WrapMiddleware(util.WithCORS(cfg.CORSOrigins)),
		middleware.BodyLimit(fmt.Sprintf("%dK", bodyLimitKB)),
		writeErrors,
		middleware.Recover(),
	)
	s.routes(cfg.MediaDir)
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.echo
}

func (s *Server) routes(mediaDir string) {
	e := s.echo
	e.GET("/healthz", s.handleHealth)
	if mediaDir != "" {
		e.Static("/media", mediaDir)
	}

	api := e.Group("/api")
	auth := s.authenticated

	// accounts
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/logout", s.handleLogout, auth)
	api.GET("/me", s.handleMe, auth)
	api.PATCH("/me", s.handleUpdateMe, auth)

	// catalog
	api.GET("/home", s.handleHome)
	api.GET("/books", s.handleListBooks)
	api.GET("/books/:id", s.handleBookDetails)
	api.POST("/books", s.handleAddBook, auth)
	api.POST("/books/sell", s.handleSellBook, auth)
	api.PUT("/books/:id", s.handleEditBook, auth)
	api.DELETE("/books/:id", s.handleDeleteBook, auth)
	api.POST("/books/:id/cover", s.handleBookCover, auth)
	api.POST("/books/:id/reviews", s.handleAddReview, auth)
	api.GET("/reviews", s.handleListReviews)
	api.GET("/my/books", s.handleMyBooks, auth)
	api.GET("/dashboard", s.handleDashboard, auth)
	api.GET("/purchase", s.handlePurchaseSearch, auth)
	api.GET("/swap/books", s.handleSwappableBooks, auth)

	// swaps
	api.POST("/swaps", s.handleRequestSwap, auth)
	api.GET("/swaps/sent", s.handleSwapsSent, auth)
	api.GET("/swaps/received", s.handleSwapsReceived, auth)
	api.POST("/swaps/:id/accept", s.handleAcceptSwap, auth)
	api.POST("/swaps/:id/reject", s.handleRejectSwap, auth)

	// profile
	api.GET("/profile", s.handleProfile, auth)
	api.PUT("/profile", s.handleUpdateProfile, auth)
	api.POST("/profile/avatar", s.handleAvatar, auth)
	api.POST("/profile/qr", s.handlePaymentQR, auth)

	// payments
	api.POST("/books/:id/buy", s.handleBuyBook, auth)
	api.POST("/books/:id/checkout", s.handleCheckout, auth)
	api.GET("/payments/pending", s.handlePendingPayments, auth)
	api.POST("/payments/:id/verify", s.handleVerifyPayment, auth)
	api.POST("/payments/:id/reject", s.handleRejectPayment, auth)
	api.GET("/purchases", s.handlePurchases, auth)
	api.GET("/sales", s.handleSales, auth)
	api.GET("/payment/success", s.handlePaymentSuccess, auth)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// authenticated resolves the session from the bearer header or the session
// cookie and stores the user on the context.
func (s *Server) authenticated(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := s.sessionToken(c)
		if !ok {
			s.audit(c, "authorize", "fail", "reason", "missing_token")
			return app.ErrUnauthenticated
		}
		user, ok := s.app.UserFromToken(c.Request().Context(), token)
		if !ok {
			s.audit(c, "authorize", "fail", "reason", "invalid_session")
			return app.ErrUnauthenticated
		}
		c.Set(contextUserKey, user)
		c.Set(contextTokenKey, token)
		return next(c)
	}
}

func (s *Server) sessionToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token, true
		}
	}
	cookie, err := c.Cookie(s.cookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", false
	}
	return cookie.Value, true
}

func currentUser(c echo.Context) domain.User {
	user, _ := c.Get(contextUserKey).(domain.User)
	return user
}

func currentToken(c echo.Context) string {
	token, _ := c.Get(contextTokenKey).(string)
	return token
}

func (s *Server) setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// allowRate consumes one unit of limiter for this path and client.
func (s *Server) allowRate(c echo.Context, limiter ratelimit.Limiter) bool {
	if limiter == nil {
		return true
	}
	r := c.Request()
	if limiter.Allow(r.Context(), r.URL.Path+"|"+s.trusted.ClientIP(r)) {
		return true
	}
	c.Response().Header().Set("Retry-After", "60")
	return false
}

func (s *Server) audit(c echo.Context, event, outcome string, attrs ...any) {
	r := c.Request()
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.trusted.ClientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

// writeErrors renders handler errors inside the wrapped net/http chain so the
// request log sees the final status.
func writeErrors(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := next(c); err != nil {
			c.Error(err)
		}
		return nil
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(c.Request().Context()).Error("request failed", "err", err)
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		slog.Warn("write error response failed", "err", err)
	}
}

// errorResponse maps an error to its HTTP status and JSON body. Unknown
// errors become a generic 500 so internals never leak.
func errorResponse(err error) (int, echo.Map) {
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		body := echo.Map{"error": verr.Message}
		if verr.Field != "" {
			body["field"] = verr.Field
		}
		return http.StatusBadRequest, body
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			msg = m
		}
		return httpErr.Code, echo.Map{"error": strings.ToLower(msg)}
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrUnauthenticated), errors.Is(err, app.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, app.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrAlreadyDecided), errors.Is(err, app.ErrUsernameTaken):
		status = http.StatusConflict
	case errors.Is(err, app.ErrOwnBook), errors.Is(err, app.ErrBookSold):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrRateLimited):
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		return status, echo.Map{"error": "internal error"}
	}
	return status, echo.Map{"error": err.Error()}
}
