package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tranchedomain "github.com/smallbiznis/fundops/internal/tranche/domain"
)

func (s *Server) CreateSchedule(c *gin.Context) {
	var req tranchedomain.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvestmentID = strings.TrimSpace(c.Param("id"))

	resp, err := s.trancheSvc.CreateSchedule(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListInvestmentTranches(c *gin.Context) {
	investmentID := strings.TrimSpace(c.Param("id"))
	resp, err := s.trancheSvc.GetInvestmentTranches(c.Request.Context(), investmentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvestmentTranche(c *gin.Context) {
	trancheID := strings.TrimSpace(c.Param("id"))
	resp, err := s.trancheSvc.GetTranche(c.Request.Context(), trancheID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFundInvestmentTranches(c *gin.Context) {
	fundID := strings.TrimSpace(c.Param("id"))
	resp, err := s.trancheSvc.GetFundTranches(c.Request.Context(), fundID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TransitionTrancheStatus(c *gin.Context) {
	var req tranchedomain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TrancheID = strings.TrimSpace(c.Param("id"))

	resp, err := s.trancheSvc.TransitionTrancheStatus(c.Request.Context(), req)
	if errors.Is(err, tranchedomain.ErrInvalidTransition) {
		// Rejected edge: surface the current/requested pair
		c.JSON(http.StatusBadRequest, gin.H{"data": resp, "error": gin.H{
			"type":    "validation_error",
			"message": "invalid transition",
			"code":    "invalid_transition",
		}})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecalculateInvestmentFunded(c *gin.Context) {
	investmentID := strings.TrimSpace(c.Param("id"))
	resp, err := s.trancheSvc.RecalculateInvestmentFunded(c.Request.Context(), investmentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type detectOverdueRequest struct {
	AutoMark bool `json:"auto_mark"`
}

func (s *Server) DetectOverdueTranches(c *gin.Context) {
	var req detectOverdueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	fundID := strings.TrimSpace(c.Param("id"))

	resp, err := s.trancheSvc.DetectOverdueTranches(c.Request.Context(), fundID, req.AutoMark)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFundTrancheStats(c *gin.Context) {
	fundID := strings.TrimSpace(c.Param("id"))
	resp, err := s.trancheSvc.GetFundTrancheStats(c.Request.Context(), fundID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
