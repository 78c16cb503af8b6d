package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListTrainingSessions(c *gin.Context) {
	sessions, err := s.trainingSvc.UpcomingSessions(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

func (s *Server) ListQuizTriggers(c *gin.Context) {
	triggers, err := s.trainingSvc.Triggers(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": triggers})
}

type groupQuizRequest struct {
	// Date is YYYY-MM-DD in the calendar time zone; empty means today.
	Date string `json:"date"`
}

// SendGroupQuiz mails the quiz to the guests of the day's training session.
func (s *Server) SendGroupQuiz(c *gin.Context) {
	var req groupQuizRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	day, err := parseDay(req.Date, s.clock.Now(), s.cfg.Calendar.Location())
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
		return
	}
	report, err := s.trainingSvc.SendGroupQuiz(c.Request.Context(), day)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}
