package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	lienwaiverdomain "github.com/smallbiznis/progresspay/internal/lienwaiver/domain"
)

func (s *Server) ListLienWaivers(c *gin.Context) {
	items, err := s.lienWaiverSvc.List(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) RecordLienWaiver(c *gin.Context) {
	var req lienwaiverdomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PayAppID = strings.TrimSpace(c.Param("id"))

	waiver, err := s.lienWaiverSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": waiver})
}
