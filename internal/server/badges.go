package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
)

const badgeSheetFilename = "badges.pdf"

// GetBadgeSheet renders badges for registration rows (?rows=2-5) or EIDs (?eid=a,b).
func (s *Server) GetBadgeSheet(c *gin.Context) {
	rows, err := s.badgeRows(c.Request.Context(), c.Query("rows"), c.Query("eid"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	doc, err := s.badgeSvc.Sheet(c.Request.Context(), rows)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+badgeSheetFilename+`"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) badgeRows(ctx context.Context, rows, eids string) ([]int, error) {
	if strings.TrimSpace(rows) != "" {
		return s.badgeSvc.ParseRows(ctx, rows)
	}
	if strings.TrimSpace(eids) == "" {
		return nil, newValidationError("rows", "required", "rows or eid is required")
	}
	return s.badgeSvc.RowsForEIDs(ctx, strings.Split(eids, ","))
}

type accessFormsRequest struct {
	Rows string `json:"rows"`
}

// RebuildAccessForms regenerates the paper building access forms and returns their storage keys.
func (s *Server) RebuildAccessForms(c *gin.Context) {
	var req accessFormsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	rows, err := parseSheetRows(req.Rows)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	keys, err := s.registrationSvc.RebuildAccessForms(c.Request.Context(), rows)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionAccessFormsRebuild, "access_forms", "", map[string]any{"rows": req.Rows})
	c.JSON(http.StatusOK, gin.H{"data": keys})
}
