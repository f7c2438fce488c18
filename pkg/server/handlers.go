package server

import (
	"errors"
	"net/http"

	"github.com/elonfeng/asoradar/pkg/aso"
	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/elonfeng/asoradar/pkg/opportunity"
	"github.com/gin-gonic/gin"
)

type batchRequest struct {
	Keywords []string `json:"keywords" binding:"required,min=1,max=100,dive,required"`
}

type suggestRequest struct {
	Strategy opportunity.Strategy `json:"strategy" binding:"omitempty,oneof=similar category competition keywords arbitrary"`
	AppID    string               `json:"appId"`
	Apps     []string             `json:"apps"`
	Keywords []string             `json:"keywords"`
	Num      int                  `json:"num" binding:"omitempty,gte=1,lte=200"`
}

type combinationsRequest struct {
	Keywords  []string `json:"keywords" binding:"required,min=1,dive,required"`
	MaxLength int      `json:"maxLength" binding:"omitempty,gte=1"`
}

type compareQuery struct {
	App        string `form:"a" binding:"required"`
	Competitor string `form:"b" binding:"required"`
}

// statusFor maps errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, aso.ErrEmptyKeyword):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrUnsupportedOperation):
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

func fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": s.svc.Store()})
}

func (s *Server) handleScore(c *gin.Context) {
	res, err := s.svc.AnalyzeKeyword(c.Request.Context(), c.Param("keyword"))
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleOpportunity(c *gin.Context) {
	report, err := s.svc.MarketOpportunity(c.Request.Context(), c.Param("keyword"))
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	results, err := aso.AnalyzeKeywords(c.Request.Context(), s.svc, req.Keywords, s.opts.Batch)
	if err != nil {
		fail(c, http.StatusServiceUnavailable, err)
		return
	}

	var failed []string
	for _, kw := range req.Keywords {
		if _, ok := results[kw]; !ok {
			failed = append(failed, kw)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   results,
		"count":  len(results),
		"failed": failed,
	})
}

func (s *Server) handleSuggestions(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	words, err := s.svc.Suggest(c.Request.Context(), aso.SuggestOptions{
		Strategy: req.Strategy,
		AppID:    req.AppID,
		AppIDs:   req.Apps,
		Keywords: req.Keywords,
		Num:      req.Num,
	})
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": words, "count": len(words)})
}

func (s *Server) handleCombinations(c *gin.Context) {
	var req combinationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if req.MaxLength == 0 {
		req.MaxLength = opportunity.DefaultCombinationLength
	}

	combos := opportunity.KeywordCombinations(req.Keywords, req.MaxLength)
	c.JSON(http.StatusOK, gin.H{"data": combos, "count": len(combos)})
}

func (s *Server) handleAppKeywords(c *gin.Context) {
	words, err := s.svc.AppKeywords(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": words, "count": len(words)})
}

func (s *Server) handleCompare(c *gin.Context) {
	var q compareQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	gap, err := s.svc.CompareApps(c.Request.Context(), q.App, q.Competitor)
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gap)
}
