package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	sovdomain "github.com/smallbiznis/progresspay/internal/sov/domain"
)

func (s *Server) ListSOVItems(c *gin.Context) {
	items, err := s.sovSvc.List(c.Request.Context(), strings.TrimSpace(c.Param("project_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreateSOVItem(c *gin.Context) {
	var req sovdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = ""
	req.ProjectID = strings.TrimSpace(c.Param("project_id"))

	resp, err := s.sovSvc.Upsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp.Item})
}

func (s *Server) UpdateSOVItem(c *gin.Context) {
	var req sovdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.sovSvc.Upsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Item})
}

func (s *Server) GetSOVItem(c *gin.Context) {
	item, err := s.sovSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) DeleteSOVItem(c *gin.Context) {
	if err := s.sovSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
