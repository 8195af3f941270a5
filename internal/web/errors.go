package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/somtrade/internal/domain"
	"github.com/vadiminshakov/somtrade/internal/services/advisor"
	"github.com/vadiminshakov/somtrade/internal/services/marketdata"
	"github.com/vadiminshakov/somtrade/internal/session"
	"go.uber.org/zap"
)

// Error codes returned in the "code" field.
const (
	codeInsufficientBalance = "insufficient_balance"
	codeInvalidRequest      = "invalid_request"
	codeUnauthorized        = "unauthorized"
	codeCredentialMissing   = "credential_missing"
	codeCredentialInvalid   = "credential_invalid"
	codeMarketUnavailable   = "market_unavailable"
	codeAIUnavailable       = "ai_unavailable"
	codeNotFound            = "not_found"
	codeInternal            = "internal"
)

func abortError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

// fail maps err onto a status and code. AI failures that are not about the
// credential are reported as retryable upstream errors.
func (s *Server) fail(c *gin.Context, err error) {
	var balanceErr *domain.BalanceError
	switch {
	case errors.As(err, &balanceErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
			"code":  codeInsufficientBalance,
			"asset": strings.ToUpper(balanceErr.Asset),
			"have":  balanceErr.Have.String(),
			"need":  balanceErr.Need.String(),
		})
	case domain.IsBalanceError(err):
		abortError(c, http.StatusUnprocessableEntity, codeInsufficientBalance, err.Error())
	case domain.IsValidationError(err),
		errors.Is(err, advisor.ErrEmptyMessage),
		errors.Is(err, session.ErrUnknownTheme):
		abortError(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.Is(err, session.ErrInvalidCredentials):
		abortError(c, http.StatusUnauthorized, codeUnauthorized, err.Error())
	case errors.Is(err, advisor.ErrMissingCredential):
		abortError(c, http.StatusPreconditionFailed, codeCredentialMissing, "AI API key is not configured")
	case errors.Is(err, advisor.ErrInvalidCredential):
		abortError(c, http.StatusPreconditionFailed, codeCredentialInvalid, "AI API key was rejected")
	case errors.Is(err, marketdata.ErrFetch):
		s.l.Warn("market data request failed", zap.String("path", c.FullPath()), zap.Error(err))
		abortError(c, http.StatusBadGateway, codeMarketUnavailable, err.Error())
	default:
		s.l.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		abortError(c, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// failAI is fail for advisory calls.
func (s *Server) failAI(c *gin.Context, err error) {
	if advisor.IsCredentialError(err) || errors.Is(err, advisor.ErrEmptyMessage) {
		s.fail(c, err)
		return
	}
	s.l.Warn("ai request failed", zap.String("path", c.FullPath()), zap.Error(err))
	abortError(c, http.StatusBadGateway, codeAIUnavailable, "AI service is unavailable, please try again")
}
