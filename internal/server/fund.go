package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	funddomain "github.com/smallbiznis/fundops/internal/fund/domain"
)

func (s *Server) GetFund(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.fundSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFunds(c *gin.Context) {
	var req funddomain.ListFundRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.fundSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
