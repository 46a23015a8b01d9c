package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/metervend/internal/middleware"
	"github.com/metervend/internal/service"
	"github.com/metervend/internal/ws"
	"github.com/metervend/pkg/response"
)

// StreamHandler serves the live readings websocket
type StreamHandler struct {
	ledgerService *service.LedgerService
	hub           *ws.Hub
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(ledgerService *service.LedgerService, hub *ws.Hub) *StreamHandler {
	return &StreamHandler{
		ledgerService: ledgerService,
		hub:           hub,
	}
}

// Stream upgrades to a websocket and pushes reading updates for the caller's
// meter as the usage job produces them
// GET /api/v1/meter/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	userID := middleware.GetUserID(c)

	meter, err := h.ledgerService.GetMeter(userID)
	if err != nil {
		response.NotFound(c, "this account has no meter specified")
		return
	}

	ws.ServeWS(c.Writer, c.Request, h.hub, meter.Num)
}

// RegisterRoutes registers the stream route
func (h *StreamHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	rg.GET("/meter/stream", authMiddleware, h.Stream)
}
