package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
)

func (s *Server) ListExemptions(c *gin.Context) {
	items, err := s.exemptionSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) AddExemption(c *gin.Context) {
	var req exemptiondomain.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	item, err := s.exemptionSvc.Add(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionExemptionAdd, "exemption", item.User, map[string]any{"reason": item.Reason})
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) RemoveExemption(c *gin.Context) {
	user := strings.TrimSpace(c.Param("user"))
	if err := s.exemptionSvc.Remove(c.Request.Context(), user); err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionExemptionRemove, "exemption", user, nil)
	c.Status(http.StatusNoContent)
}
