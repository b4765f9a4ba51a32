package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/workdesk/internal/taxrate/domain"
)

type setTaxRateRequest struct {
	Rate *decimal.Decimal `json:"rate" binding:"required"`
}

func (s *Server) ListTaxRates(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	rates, err := s.taxRateSvc.List(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rates})
}

type taxRateAt struct {
	Type    taxdomain.TaxType `json:"type"`
	At      time.Time         `json:"at"`
	Rate    decimal.Decimal   `json:"rate"`
	Version int               `json:"version"`
}

// ListTaxRateHistory lists every version of a tax type, or with ?at= the version in force then.
func (s *Server) ListTaxRateHistory(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	taxType, err := taxdomain.ParseTaxType(c.Param("type"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	at, err := parseTimeQuery(c.Query("at"))
	if err != nil {
		AbortWithError(c, newValidationError("at", "invalid_at", "at must be RFC 3339"))
		return
	}
	if at != nil {
		applied, err := s.taxRateSvc.RateAt(c.Request.Context(), actor, taxType, *at)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": taxRateAt{
			Type:    taxType,
			At:      at.UTC(),
			Rate:    applied.Rate,
			Version: applied.Version,
		}})
		return
	}

	versions, err := s.taxRateSvc.History(c.Request.Context(), actor, taxType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": versions})
}

func (s *Server) SetTaxRate(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	taxType, err := taxdomain.ParseTaxType(c.Param("type"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req setTaxRateRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	rate, err := s.taxRateSvc.SetRate(c.Request.Context(), actor, taxType, *req.Rate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rate})
}
