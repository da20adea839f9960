package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	pricingdomain "github.com/smallbiznis/fundops/internal/pricing/domain"
)

func (s *Server) GetActiveTranche(c *gin.Context) {
	fundID := strings.TrimSpace(c.Param("id"))
	resp, err := s.pricingSvc.GetActiveTranche(c.Request.Context(), fundID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTranches(c *gin.Context) {
	fundID := strings.TrimSpace(c.Param("id"))
	resp, err := s.pricingSvc.GetAllTranches(c.Request.Context(), fundID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateTranches(c *gin.Context) {
	var req pricingdomain.CreateTranchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.FundID = strings.TrimSpace(c.Param("id"))

	resp, err := s.pricingSvc.CreateTranches(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateTranche(c *gin.Context) {
	var req pricingdomain.UpdateTrancheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.FundID = strings.TrimSpace(c.Param("id"))
	req.TrancheID = strings.TrimSpace(c.Param("trancheId"))

	resp, err := s.pricingSvc.UpdateTranche(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) QuotePurchase(c *gin.Context) {
	var req pricingdomain.QuotePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.FundID = strings.TrimSpace(c.Param("id"))

	resp, err := s.pricingSvc.QuotePurchase(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ExecutePurchase(c *gin.Context) {
	var req pricingdomain.ExecutePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.FundID = strings.TrimSpace(c.Param("id"))

	resp, err := s.pricingSvc.ExecutePurchase(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFundProgress(c *gin.Context) {
	fundID := strings.TrimSpace(c.Param("id"))
	resp, err := s.pricingSvc.GetFundProgress(c.Request.Context(), fundID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
