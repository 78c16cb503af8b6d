package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	"github.com/smallbiznis/labdesk/internal/authorization"
	"github.com/smallbiznis/labdesk/internal/input"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	"go.uber.org/zap"
)

const (
	legacyNotImplemented = "Failure: That functionality does not exist"
	legacyMissingParams  = "Failure: Required parameters not provided"
)

// Exec is the query-parameter dispatcher used by existing links and shortcuts.
// It answers in plain text prefixed with "Success:" or "Failure:", except for badges.
func (s *Server) Exec(c *gin.Context) {
	q := c.Request.URL.Query()
	switch {
	case q.Get("badges") != "":
		s.execBadges(c, q.Get("badges"), "")
	case q.Get("content") != "" && q.Get("eid") != "":
		if q.Get("content") != "badges" {
			c.String(http.StatusOK, legacyNotImplemented)
			return
		}
		s.execBadges(c, "", q.Get("eid"))
	case q.Get("basket") != "" && q.Get("operation") != "":
		s.execBasket(c, q.Get("basket"), q.Get("operation"))
	case q.Get("content") != "" && q.Get("email") != "":
		s.execEmail(c, q.Get("content"), q.Get("email"))
	default:
		c.String(http.StatusOK, legacyMissingParams)
	}
}

func (s *Server) execAllowed(c *gin.Context, object, action string) bool {
	if err := s.authorizeWithContext(c, object, action); err != nil {
		status, _ := mapError(err)
		c.String(status, "Failure: "+err.Error())
		return false
	}
	return true
}

func (s *Server) execBadges(c *gin.Context, rows, eids string) {
	if !s.execAllowed(c, authorization.ObjectBadge, authorization.ActionBadgePrint) {
		return
	}
	ctx := c.Request.Context()
	parsed, err := s.badgeRows(ctx, rows, eids)
	if err == nil {
		var doc []byte
		if doc, err = s.badgeSvc.Sheet(ctx, parsed); err == nil {
			c.Header("Content-Disposition", `inline; filename="`+badgeSheetFilename+`"`)
			c.Data(http.StatusOK, "application/pdf", doc)
			return
		}
	}
	s.log.Warn("legacy badge request failed", zap.Error(err))
	c.String(http.StatusOK, "Failure: There was an error running this module.\nError: "+err.Error())
}

func (s *Server) execBasket(c *gin.Context, id, operation string) {
	if operation != "return" {
		c.String(http.StatusOK, legacyNotImplemented)
		return
	}
	if !s.execAllowed(c, authorization.ObjectBasket, authorization.ActionBasketReturn) {
		return
	}
	basketID := strings.ToUpper(strings.TrimSpace(id))
	if _, err := s.basketSvc.Return(c.Request.Context(), basketID); err != nil {
		c.String(http.StatusOK, "Failure: Error returning basket - "+err.Error())
		return
	}
	s.recordAudit(c, auditdomain.ActionBasketReturn, "basket", basketID, nil)
	c.String(http.StatusOK, "Success: Basket returned successfully.")
}

func (s *Server) execEmail(c *gin.Context, content, addresses string) {
	kind, ok := registrationdomain.ParseEmailKind(content)
	if !ok {
		c.String(http.StatusOK, legacyNotImplemented)
		return
	}
	if !s.execAllowed(c, authorization.ObjectEmail, authorization.ActionEmailSend) {
		return
	}
	report, err := s.registrationSvc.SendOnboarding(c.Request.Context(), kind, input.ParseEmailAddresses(addresses))
	if err == nil && len(report.Failed) > 0 {
		err = &partialSendError{failed: report.Failed}
	}
	if err != nil {
		c.String(http.StatusOK, "Failure: There was an error running this module.\nError: "+err.Error())
		return
	}
	c.String(http.StatusOK, "Success: Email sent")
}

type partialSendError struct {
	failed []string
}

func (e *partialSendError) Error() string {
	return "not sent to " + strings.Join(e.failed, ", ")
}
