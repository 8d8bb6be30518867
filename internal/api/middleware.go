package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"market-service/internal/apperr"
	"market-service/internal/session"
	"market-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
	sessionKey      = "session"
)

// requestID tags every request with an id, reusing the caller's if sent
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs one line per request
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		util.GetLogger().Info("HTTP request",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// loadSession attaches the caller's session, or a fresh unsaved one
func (h *Handler) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		var sess *session.Session
		if id, err := c.Cookie(h.sessions.CookieName()); err == nil {
			sess, err = h.sessions.Load(c.Request.Context(), id)
			if err != nil {
				util.GetLogger().Warn("Failed to load session", zap.Error(err))
			}
		}
		if sess == nil {
			sess = h.sessions.New()
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// requireAuth lets logged-in users through. Browsers are sent to the login
// page and come back to the requested path afterwards.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		if sess.Authenticated() {
			c.Next()
			return
		}

		if wantsJSON(c) {
			respondError(c, apperr.New(apperr.CodeUnauthorized, "please log in to continue"))
			return
		}

		sess.ReturnTo = c.Request.URL.RequestURI()
		if err := h.saveSession(c, sess); err != nil {
			respondError(c, apperr.Internal(err, "failed to save session"))
			return
		}
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
	}
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentSession(c).IsAdmin {
			respondError(c, apperr.Forbidden("admin access required"))
			return
		}
		c.Next()
	}
}

func wantsJSON(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest" ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

func currentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(*session.Session); ok {
			return sess
		}
	}
	return &session.Session{}
}

// saveSession persists sess and (re)issues its cookie
func (h *Handler) saveSession(c *gin.Context, sess *session.Session) error {
	if err := h.sessions.Save(c.Request.Context(), sess); err != nil {
		return err
	}
	h.setCookie(c, sess.ID, int(h.sessions.TTL().Seconds()))
	c.Set(sessionKey, sess)
	return nil
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), value, maxAge, "/", "", h.sessions.Secure(), true)
}
