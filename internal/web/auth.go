package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// SessionCookie carries the session token for clients that cannot set headers (EventSource).
const SessionCookie = "somtrade_session"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login starts a mock session for any non-blank credentials.
func (s *Server) Login(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "handler.login")
	defer span.End()

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}
	span.SetAttributes(attribute.String("user", req.Username))

	token, err := s.deps.Sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, token, 0, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout clears the session and resets the portfolio; preferences are kept.
func (s *Server) Logout(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "handler.logout")
	defer span.End()

	if err := s.deps.Sessions.Logout(ctx); err != nil {
		s.fail(c, err)
		return
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func sessionToken(c *gin.Context) string {
	if auth := strings.TrimSpace(c.GetHeader("Authorization")); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	token, err := c.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return token
}

func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			abortError(c, http.StatusUnauthorized, codeUnauthorized, "not signed in")
			return
		}
		if !s.deps.Sessions.Validate(c.Request.Context(), token) {
			abortError(c, http.StatusUnauthorized, codeUnauthorized, "session expired")
			return
		}
		c.Next()
	}
}
