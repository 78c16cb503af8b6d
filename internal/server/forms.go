package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SubmitForm accepts a form response as a JSON object or as url-encoded fields.
func (s *Server) SubmitForm(c *gin.Context) {
	values := map[string]string{}
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&values); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	} else {
		if err := c.Request.ParseForm(); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		for key := range c.Request.PostForm {
			values[key] = c.Request.PostForm.Get(key)
		}
	}

	res, err := s.intakeSvc.Submit(c.Request.Context(), c.Param("form"), values)
	if err != nil {
		// The row is stored before the workflow runs.
		if res.Row > 0 {
			_ = c.Error(err)
			c.JSON(http.StatusAccepted, gin.H{"data": res, "warnings": []string{err.Error()}})
			return
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}
