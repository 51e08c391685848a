package handlers

import (
	"net/http"
	"strings"
	"time"

	"dca_flow_app_go/config"
	"dca_flow_app_go/db"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

// globalDummyHash keeps bcrypt timing constant when the email is unknown
var globalDummyHash = "$2a$10$X7.G.t8./.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t.t"

func init() {
	hash, _ := services.HashPassword("dummy_password_for_timing_mitigation")
	if hash != "" {
		globalDummyHash = hash
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler authenticates a user and sets the session cookie
func LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	}

	var user models.User
	err := db.DB.Preload("DCA").Where("email = ?", email).First(&user).Error
	if err != nil {
		// Timing attack mitigation
		services.CheckPassword(req.Password, globalDummyHash)
		services.Monitor.TrackFailedLogin(c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}

	if !services.CheckPassword(req.Password, user.Password) {
		services.Monitor.TrackFailedLogin(c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}

	if !user.IsActive {
		return echo.NewHTTPError(http.StatusUnauthorized, "Your account has been deactivated")
	}

	session, err := services.CreateSession(db.DB, user.ID, user.DCAID, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return respondError(c, err)
	}

	now := time.Now()
	db.DB.Model(&user).Update("last_login_at", &now)

	cfg, _ := c.Get("config").(*config.Config)
	setSessionCookie(c, cfg, session.Token, session.ExpiresAt)

	services.LogHumanAction(db.DB, cfg, services.AuditContext{
		UserID:    user.ID,
		UserEmail: user.Email,
		UserRole:  user.Role,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}, models.AuditActionLogin, "User", user.ID, user.Email, nil)

	return c.JSON(http.StatusOK, map[string]interface{}{"user": user})
}

// LogoutHandler deletes the session and clears the cookie
func LogoutHandler(c echo.Context) error {
	cookie, err := c.Cookie(middleware.SessionCookieName)
	if err == nil {
		services.DeleteSession(db.DB, cookie.Value)
	}

	cfg, _ := c.Get("config").(*config.Config)
	setSessionCookie(c, cfg, "", time.Now().Add(-time.Hour))

	if user := middleware.GetCurrentUser(c); user != nil {
		services.LogHumanAction(db.DB, cfg, middleware.GetAuditContext(c),
			models.AuditActionLogout, "User", user.ID, user.Email, nil)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "logged_out"})
}

// MeHandler returns the authenticated user with their accessible regions
func MeHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	grants, err := services.GetUserAccessibleRegions(db.DB, user.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":    user,
		"regions": grants,
	})
}

func setSessionCookie(c echo.Context, cfg *config.Config, token string, expires time.Time) {
	var isProduction bool
	if cfg != nil {
		isProduction = cfg.Environment == "production"
	}

	cookie := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	c.SetCookie(cookie)
}
