package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/service"
)

type selectMethodRequest struct {
	Method string `json:"method" binding:"required"`
}

type cardRequest struct {
	CardToken string `json:"card_token" binding:"required"`
}

type walletRequest struct {
	ProviderOrderID string `json:"provider_order_id" binding:"required"`
}

type cancelRequest struct {
	ProviderOrderID string `json:"provider_order_id"`
}

func session(c *gin.Context) service.Session {
	buyer, _ := c.Get(ctxBuyer)
	b, _ := buyer.(domain.Buyer)
	return service.Session{ID: c.GetString(ctxSession), Buyer: b}
}

// respondResult routes a pipeline outcome to the single user-visible result.
func respondResult(c *gin.Context, order *domain.Order, err error) {
	res := service.Route(order, err)
	status := http.StatusOK
	if err != nil {
		status = apperr.HTTPStatus(err)
	}
	c.JSON(status, res)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "bad_request"})
}

func (s *Server) health(c *gin.Context) {
	status := http.StatusOK
	out := gin.H{"status": "up"}
	for name, check := range s.checks {
		if err := check(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			out["status"] = "degraded"
			out[name] = err.Error()
			continue
		}
		out[name] = "up"
	}
	c.JSON(status, out)
}

func (s *Server) loadPayment(c *gin.Context) {
	view, err := s.checkout.LoadPayment(c.Request.Context(), session(c))
	if err != nil {
		respondResult(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) selectMethod(c *gin.Context) {
	var req selectMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := s.checkout.SelectMethod(c.Request.Context(), session(c), req.Method); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error(), "kind": apperr.Kind(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"method": req.Method})
}

func (s *Server) submitCard(c *gin.Context) {
	var req cardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := s.checkout.SubmitCard(c.Request.Context(), session(c), req.CardToken)
	respondResult(c, order, err)
}

func (s *Server) createWalletOrder(c *gin.Context) {
	wo, err := s.checkout.CreateWalletOrder(c.Request.Context(), session(c))
	if err != nil {
		respondResult(c, nil, err)
		return
	}
	c.JSON(http.StatusCreated, wo)
}

func (s *Server) approveWallet(c *gin.Context) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := s.checkout.ApproveWallet(c.Request.Context(), session(c), req.ProviderOrderID)
	respondResult(c, order, err)
}

func (s *Server) cancelWallet(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	err := s.checkout.CancelWallet(c.Request.Context(), session(c), req.ProviderOrderID)
	respondResult(c, nil, err)
}

func (s *Server) confirmPayOnDelivery(c *gin.Context) {
	order, err := s.checkout.ConfirmPayOnDelivery(c.Request.Context(), session(c))
	respondResult(c, order, err)
}
