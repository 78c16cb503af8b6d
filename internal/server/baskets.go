package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/pkg/db/pagination"
	"go.uber.org/zap"
)

func (s *Server) ListBaskets(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Zone      string `form:"zone"`
		Available string `form:"available"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	available, err := parseOptionalBool(query.Available)
	if err != nil {
		AbortWithError(c, newValidationError("available", "invalid_available", "invalid available"))
		return
	}

	entries, err := s.basketSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	zone := strings.TrimSpace(query.Zone)
	filtered := make([]basketdomain.IndexEntry, 0, len(entries))
	for _, entry := range entries {
		if zone != "" && !strings.EqualFold(entry.Zone, zone) {
			continue
		}
		if available != nil && entry.Available != *available {
			continue
		}
		filtered = append(filtered, entry)
	}

	page, info, err := pagination.Slice(filtered, query.Pagination, func(e basketdomain.IndexEntry) string { return e.BasketID })
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": page, "page_info": info})
}

func (s *Server) GetBasket(c *gin.Context) {
	entry, err := s.basketSvc.Lookup(c.Request.Context(), strings.ToUpper(strings.TrimSpace(c.Param("id"))))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (s *Server) ListPurgeCandidates(c *gin.Context) {
	entries, err := s.basketSvc.PurgeCandidates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

type assignBasketRequest struct {
	basketdomain.AssignRequest
	// Notify defaults to true.
	Notify *bool `json:"notify"`
}

func (s *Server) AssignBasket(c *gin.Context) {
	var req assignBasketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	res, err := s.basketSvc.Assign(ctx, req.AssignRequest)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	notified := false
	if req.Notify == nil || *req.Notify {
		if err := s.basketSvc.NotifyAssignment(ctx, req.AssignRequest, res); err != nil {
			s.log.Warn("basket assignment email failed", zap.String("eid", req.EID), zap.Error(err))
		} else {
			notified = true
		}
	}

	if res.Assigned() {
		s.recordAudit(c, auditdomain.ActionBasketAssign, "basket", res.BasketID, map[string]any{
			"eid":        req.EID,
			"email":      req.Email,
			"phone":      req.Phone,
			"zone":       res.Zone,
			"reassigned": res.Reassigned,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"basket_id":  res.BasketID,
		"zone":       res.Zone,
		"row":        res.Row,
		"reassigned": res.Reassigned,
		"assigned":   res.Assigned(),
		"notified":   notified,
		"warnings":   res.Warnings,
	}})
}

type returnBasketsRequest struct {
	IDs  []string `json:"ids"`
	Rows string   `json:"rows"`
}

// ReturnBaskets frees baskets by ID or by Basket Index row. Partial failures are
// reported alongside the baskets that were returned.
func (s *Server) ReturnBaskets(c *gin.Context) {
	var req returnBasketsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	var (
		res basketdomain.ReturnResult
		err error
	)
	switch {
	case strings.TrimSpace(req.Rows) != "":
		rows, parseErr := parseSheetRows(req.Rows)
		if parseErr != nil {
			AbortWithError(c, parseErr)
			return
		}
		res, err = s.basketSvc.ReturnRows(ctx, rows)
	case len(req.IDs) > 0:
		ids := make([]string, 0, len(req.IDs))
		for _, id := range req.IDs {
			ids = append(ids, strings.ToUpper(strings.TrimSpace(id)))
		}
		res, err = s.basketSvc.Return(ctx, ids...)
	default:
		AbortWithError(c, newValidationError("ids", "required", "ids or rows is required"))
		return
	}

	if err != nil && len(res.Returned) == 0 {
		AbortWithError(c, err)
		return
	}
	for _, id := range res.Returned {
		s.recordAudit(c, auditdomain.ActionBasketReturn, "basket", id, nil)
	}
	body := gin.H{"data": res}
	if err != nil {
		body["warnings"] = strings.Split(err.Error(), "\n")
	}
	c.JSON(http.StatusOK, body)
}

type reconcileRequest struct {
	GraceDays *int `json:"grace_days"`
}

func (s *Server) ReconcileBaskets(c *gin.Context) {
	var req reconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	graceDays := s.policy.Get().GracePeriodDays
	if req.GraceDays != nil {
		if *req.GraceDays < 0 {
			AbortWithError(c, newValidationError("grace_days", "invalid_grace_days", "grace_days must not be negative"))
			return
		}
		graceDays = *req.GraceDays
	}

	changes, err := s.basketSvc.Reconcile(c.Request.Context(), graceDays)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionBasketReconcile, "basket_index", "", map[string]any{
		"grace_days": graceDays,
		"changes":    len(changes),
	})
	c.JSON(http.StatusOK, gin.H{"data": changes, "grace_days": graceDays})
}

func (s *Server) SendPurgeWarnings(c *gin.Context) {
	report, err := s.basketSvc.SendPurgeWarnings(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionBasketPurge, "basket_index", "", map[string]any{
		"candidates": report.Candidates,
		"sent":       report.Sent,
	})
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) RefreshActiveUsers(c *gin.Context) {
	res, err := s.activeUserSvc.Refresh(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionActiveUsersRefresh, "active_users", "", map[string]any{
		"months": res.Months,
		"users":  res.Users,
	})
	c.JSON(http.StatusOK, gin.H{"data": res})
}
