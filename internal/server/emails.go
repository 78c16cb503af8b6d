package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	"github.com/smallbiznis/labdesk/internal/input"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
)

// Email kinds that address sheet rows instead of free-form addresses.
const (
	emailKindQuiz      = "quiz"
	emailKindLabAccess = "lab-access"
)

type sendEmailsRequest struct {
	// Addresses is free text; every valid address in it receives one email.
	Addresses string `json:"addresses"`
	Rows      string `json:"rows"`
}

func (s *Server) SendEmails(c *gin.Context) {
	var req sendEmailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	kind := c.Param("kind")
	switch kind {
	case emailKindQuiz:
		rows, err := parseSheetRows(req.Rows)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		report, err := s.quizSvc.SendQuizRows(ctx, rows)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		s.recordAudit(c, auditdomain.ActionEmailSend, "email", kind, map[string]any{"rows": req.Rows})
		c.JSON(http.StatusOK, gin.H{"data": report})
	case emailKindLabAccess:
		rows, err := parseSheetRows(req.Rows)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		report, err := s.registrationSvc.RequestLabAccessRows(ctx, rows)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		s.recordAudit(c, auditdomain.ActionEmailSend, "email", kind, map[string]any{"rows": req.Rows})
		c.JSON(http.StatusOK, gin.H{"data": report})
	default:
		parsed, ok := registrationdomain.ParseEmailKind(kind)
		if !ok {
			AbortWithError(c, registrationdomain.ErrUnknownEmailKind)
			return
		}
		addresses := input.ParseEmailAddresses(req.Addresses)
		report, err := s.registrationSvc.SendOnboarding(ctx, parsed, addresses)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		s.recordAudit(c, auditdomain.ActionEmailSend, "email", kind, map[string]any{"emails": addresses})
		c.JSON(http.StatusOK, gin.H{"data": report})
	}
}
