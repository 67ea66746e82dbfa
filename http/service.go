// Package http exposes the facilitator over HTTP: payment verification,
// settlement with idempotency guarding, and capability discovery.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/x402-labs/sponsorpay"
	"github.com/x402-labs/sponsorpay/evm"
)

// Verifier validates a payment payload against requirements.
type Verifier interface {
	Verify(ctx context.Context, payload *evm.ExactPayload, requirements sponsorpay.PaymentRequirements) sponsorpay.VerifyResult
}

// Settler executes a verified payment. Both the direct and the relayed
// settler satisfy this.
type Settler interface {
	Settle(ctx context.Context, payload *evm.ExactPayload, requirements sponsorpay.PaymentRequirements) sponsorpay.SettlementResult
}

// Service is the facilitator HTTP surface.
type Service struct {
	verifier Verifier
	settler  Settler
	cache    *sponsorpay.SettlementCache
	networks []string
	log      *zap.Logger
}

// NewService creates the facilitator service. The settlement cache is
// optional; without it concurrent duplicate settles race to the chain and
// the loser burns relay budget.
func NewService(verifier Verifier, settler Settler, cache *sponsorpay.SettlementCache, networks []string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		verifier: verifier,
		settler:  settler,
		cache:    cache,
		networks: networks,
		log:      log,
	}
}

// Router builds the gin engine with all facilitator routes.
func (s *Service) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/supported", s.handleSupported)
	router.POST("/verify", s.handleVerify)
	router.POST("/settle", s.handleSettle)
	return router
}

type paymentRequest struct {
	PaymentPayload      evm.ExactPayload               `json:"paymentPayload"`
	PaymentRequirements sponsorpay.PaymentRequirements `json:"paymentRequirements"`
}

func (s *Service) handleSupported(c *gin.Context) {
	kinds := make([]gin.H, 0, len(s.networks))
	for _, network := range s.networks {
		kinds = append(kinds, gin.H{
			"scheme":  sponsorpay.SchemeExact,
			"network": network,
		})
	}
	c.JSON(http.StatusOK, gin.H{"kinds": kinds})
}

func (s *Service) handleVerify(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result := s.verifier.Verify(c.Request.Context(), &req.PaymentPayload, req.PaymentRequirements)
	if !result.IsValid {
		c.JSON(http.StatusPaymentRequired, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Service) handleSettle(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if s.cache == nil {
		s.respondSettlement(c, s.settler.Settle(c.Request.Context(), &req.PaymentPayload, req.PaymentRequirements))
		return
	}

	auth := req.PaymentPayload.Authorization
	key := sponsorpay.SettlementKey(auth.From, auth.Nonce)

	status, cached, done := s.cache.Claim(key)
	switch status {
	case sponsorpay.CacheHit:
		s.respondSettlement(c, *cached)
		return
	case sponsorpay.CacheInFlight:
		result, err := s.cache.Await(c.Request.Context(), key, done)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if result == nil {
			// Owning attempt failed without caching; the client may retry.
			c.JSON(http.StatusBadGateway, sponsorpay.SettlementResult{
				Success: false,
				Error:   "Concurrent settlement attempt failed",
				Network: req.PaymentRequirements.Network,
			})
			return
		}
		s.respondSettlement(c, *result)
		return
	}

	// The claim must not outlive this attempt: if the settler panics,
	// gin.Recovery answers the request but would otherwise leave the key
	// in-flight forever, parking every later settle for it.
	settled := false
	defer func() {
		if !settled {
			s.cache.Release(key, done)
		}
	}()

	result := s.settler.Settle(c.Request.Context(), &req.PaymentPayload, req.PaymentRequirements)
	if result.Success {
		s.cache.Complete(key, &result, done)
	} else {
		s.cache.Release(key, done)
	}
	settled = true
	s.respondSettlement(c, result)
}

// respondSettlement maps a settlement result onto an HTTP status: 200 for
// success, 402 when the failure is the payer's fault, 502 otherwise.
func (s *Service) respondSettlement(c *gin.Context, result sponsorpay.SettlementResult) {
	switch {
	case result.Success:
		c.JSON(http.StatusOK, result)
	case isPayerFault(result.Error):
		c.JSON(http.StatusPaymentRequired, result)
	default:
		c.JSON(http.StatusBadGateway, result)
	}
}

var payerFaultReasons = map[string]bool{
	evm.ReasonFieldsInvalid:       true,
	evm.ReasonInvalidSignature:    true,
	evm.ReasonSignerMismatch:      true,
	evm.ReasonInsufficientBalance: true,
	evm.ReasonNotYetValid:         true,
	evm.ReasonExpired:             true,
}

func isPayerFault(reason string) bool {
	return payerFaultReasons[reason]
}

// requestLogger tags every request with an id and logs method, path,
// status and latency.
func (s *Service) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Header("X-Request-ID", requestID)
		start := time.Now()

		c.Next()

		s.log.Info("request",
			zap.String("requestId", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
