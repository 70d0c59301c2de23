// Package v1 implements the v1 HTTP API.
package v1

import (
	"context"
	"errors"
	"fmt"
	"time"

	"infracopilot/internal/server/api/response"
	"infracopilot/internal/server/service"
	"infracopilot/internal/types"
	"infracopilot/internal/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	checkTimeout     = 30 * time.Second
	narrativeTimeout = 120 * time.Second
)

// API represents the API
type API struct {
	service *service.Service
	logger  *zap.Logger
}

// NewAPI creates new API
func NewAPI(svc *service.Service, logger *zap.Logger) *API {
	return &API{
		service: svc,
		logger:  logger,
	}
}

// RegisterRoutes registers API routes
func (api *API) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", api.checkHealth)
	r.GET("/metrics", api.getMetrics)
	r.POST("/report", api.generateReport)
	r.POST("/chat", api.chat)
	r.POST("/supervisor", api.supervisor)
	r.GET("/models", api.listModels)
}

// checkHealth runs all health checks and returns the unified report
func (api *API) checkHealth(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	resp.Success(api.service.CheckHealth(ctx))
}

// getMetrics returns the trailing metrics series
func (api *API) getMetrics(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	resp.Success(api.service.Metrics(ctx))
}

// generateReport produces a narrative markdown report
func (api *API) generateReport(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), narrativeTimeout)
	defer cancel()

	var req types.ReportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			api.logger.Error("Invalid report request",
				zap.Error(err),
				zap.String("client_ip", c.ClientIP()))
			resp.BadRequest(fmt.Errorf("invalid report request format: %v", err))
			return
		}
	}

	result, err := api.service.GenerateReport(ctx, req)
	if err != nil {
		api.narrativeError(c, resp, err, "Failed to generate report")
		return
	}

	resp.Success(result)
}

// chat executes one conversational agent turn
func (api *API) chat(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), narrativeTimeout)
	defer cancel()

	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.logger.Error("Invalid chat request",
			zap.Error(err),
			zap.String("client_ip", c.ClientIP()))
		resp.BadRequest(fmt.Errorf("invalid chat request format: %v", err))
		return
	}

	if err := validator.New().Struct(&req); err != nil {
		resp.BadRequest(err)
		return
	}

	result, err := api.service.Chat(ctx, req)
	if err != nil {
		if errors.Is(err, types.ErrInvalidMode) || errors.Is(err, types.ErrInvalidSessionID) {
			resp.BadRequest(err)
			return
		}
		api.narrativeError(c, resp, err, "Chat turn failed")
		return
	}

	resp.Success(result)
}

// supervisor answers a single question without tools or session state
func (api *API) supervisor(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), narrativeTimeout)
	defer cancel()

	var req struct {
		Input string `json:"input"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(fmt.Errorf("invalid supervisor request format: %v", err))
		return
	}

	result, err := api.service.Supervisor(ctx, req.Input)
	if err != nil {
		api.narrativeError(c, resp, err, "Supervisor turn failed")
		return
	}

	resp.Success(result)
}

// listModels enumerates the narrative models available to the configured key
func (api *API) listModels(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	models, err := api.service.ListModels(ctx)
	if err != nil {
		api.narrativeError(c, resp, err, "Failed to list models")
		return
	}

	resp.Success(gin.H{"models": models})
}

// narrativeError maps upstream narrative failures onto HTTP statuses
func (api *API) narrativeError(c *gin.Context, resp *response.Handler, err error, msg string) {
	if errors.Is(err, context.Canceled) {
		api.logger.Info("Client canceled request",
			zap.String("request_id", c.GetString("request_id")))
		return
	}

	api.logger.Error(msg,
		zap.Error(err),
		zap.String("request_id", c.GetString("request_id")))

	switch {
	case errors.Is(err, types.ErrNotConfigured):
		resp.ServiceUnavailable(err)
	case errors.Is(err, types.ErrNarrativeUnavailable):
		resp.BadGateway(err)
	default:
		resp.InternalError(err)
	}
}
