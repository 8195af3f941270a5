package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vadiminshakov/somtrade/internal/session"
)

// GetSettings returns the preferences and the chat greeting.
func (s *Server) GetSettings(c *gin.Context) {
	settings, err := s.deps.Sessions.Settings(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings, "chat_welcome": chatWelcome()})
}

type settingsRequest struct {
	Theme *string `json:"theme"`
	// APIKey replaces the AI key; an empty string removes it.
	APIKey *string `json:"api_key"`
}

// PutSettings updates the fields present in the body.
func (s *Server) PutSettings(c *gin.Context) {
	ctx := c.Request.Context()

	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	if req.Theme != nil {
		theme, err := session.ParseTheme(*req.Theme)
		if err != nil {
			s.fail(c, err)
			return
		}
		if err := s.deps.Sessions.SetTheme(ctx, theme); err != nil {
			s.fail(c, err)
			return
		}
	}
	if req.APIKey != nil {
		if err := s.deps.Sessions.SetAPIKey(ctx, *req.APIKey); err != nil {
			s.fail(c, err)
			return
		}
	}
	s.GetSettings(c)
}
