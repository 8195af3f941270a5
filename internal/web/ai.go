package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/services/advisor"
)

type insightsRequest struct {
	Topic string `json:"topic"`
}

// Insights returns an AI overview of a coin.
func (s *Server) Insights(c *gin.Context) {
	var req insightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}
	text, err := s.deps.Advisor.Insights(c.Request.Context(), req.Topic)
	if err != nil {
		s.failAI(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// Analysis returns an AI review of the current portfolio.
func (s *Server) Analysis(c *gin.Context) {
	text, err := s.deps.Advisor.PortfolioAnalysis(c.Request.Context(), s.deps.Portfolio.Snapshot(), s.markets())
	if err != nil {
		s.failAI(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

type chatRequest struct {
	History []domain.ChatMessage `json:"history"`
	Message string               `json:"message"`
}

// Chat answers a message given the prior conversation. The client owns the history.
func (s *Server) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}
	text, err := s.deps.Advisor.ChatReply(c.Request.Context(), req.History, req.Message)
	if err != nil {
		s.failAI(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reply": domain.ChatMessage{Role: domain.RoleModel, Text: text},
	})
}

// chatWelcome is the greeting a new chat opens with.
func chatWelcome() domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleModel, Text: advisor.WelcomeMessage}
}
