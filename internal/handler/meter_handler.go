package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/metervend/internal/middleware"
	"github.com/metervend/internal/service"
	"github.com/metervend/pkg/response"
	"github.com/shopspring/decimal"
)

// MeterHandler handles meter ledger API requests
type MeterHandler struct {
	ledgerService  *service.LedgerService
	readingService *service.ReadingService
}

// NewMeterHandler creates a new MeterHandler
func NewMeterHandler(ledgerService *service.LedgerService, readingService *service.ReadingService) *MeterHandler {
	return &MeterHandler{
		ledgerService:  ledgerService,
		readingService: readingService,
	}
}

// GetMeter returns the caller's meter with the freshest cached reading
// GET /api/v1/meter
func (h *MeterHandler) GetMeter(c *gin.Context) {
	userID := middleware.GetUserID(c)

	meter, err := h.ledgerService.GetMeter(userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	// Prefer the cached reading written by the usage job; the row value is
	// the fallback when the cache is cold.
	reading := meter.Units.String()
	if h.readingService != nil {
		if cached, err := h.readingService.GetLatest(c.Request.Context(), meter.Num); err == nil {
			reading = cached
		}
	}

	response.Success(c, gin.H{
		"meter":   meter,
		"reading": reading,
	})
}

// TransferRequest consumes the legacy transfer form fields: the destination
// meter number and the unit quantity, both as strings.
type TransferRequest struct {
	Mnum  string `json:"mnum" binding:"required"`
	Units string `json:"units" binding:"required"`
}

// Transfer moves units to another meter
// POST /api/v1/meter/transfer
func (h *MeterHandler) Transfer(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "some fields are empty")
		return
	}

	amount, err := decimal.NewFromString(req.Units)
	if err != nil {
		response.BadRequest(c, "units must be numeric")
		return
	}

	meter, err := h.ledgerService.Transfer(userID, req.Mnum, amount)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "successfully transferred units",
		"meter":   meter,
	})
}

// TopUpRequest consumes the top-up form fields
type TopUpRequest struct {
	Amount string `json:"amount" binding:"required"`
	Phone  string `json:"phone" binding:"required"`
	Email  string `json:"email" binding:"required,email"`
}

// TopUp credits a paid amount to the meter balance
// POST /api/v1/meter/topup
func (h *MeterHandler) TopUp(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "some fields are empty")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.BadRequest(c, "amount must be numeric")
		return
	}

	meter, ref, err := h.ledgerService.TopUp(c.Request.Context(), userID, amount, req.Phone, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"message":   "successfully topped up meter balance",
		"reference": ref,
		"meter":     meter,
	})
}

// Offers lists the emergency credit catalog
// GET /api/v1/meter/offers
func (h *MeterHandler) Offers(c *gin.Context) {
	offers, err := h.ledgerService.Offers()
	if err != nil {
		response.InternalError(c, "failed to load offers")
		return
	}
	response.Success(c, offers)
}

// EmergencyRequest selects an offer from the catalog
type EmergencyRequest struct {
	Option uint `json:"option" binding:"required"`
}

// Emergency grants emergency credit from the selected offer
// POST /api/v1/meter/emergency
func (h *MeterHandler) Emergency(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req EmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "the option field is empty")
		return
	}

	meter, err := h.ledgerService.EmergencyCredit(userID, req.Option)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "successfully added emergency units",
		"meter":   meter,
	})
}

// Activity returns the caller's activity log between the from/to dates
// GET /api/v1/meter/activity?from=2026-01-01&to=2026-01-31
func (h *MeterHandler) Activity(c *gin.Context) {
	userID := middleware.GetUserID(c)

	from, ok := parseDate(c.Query("from"))
	if !ok {
		response.BadRequest(c, "from must be a date (YYYY-MM-DD)")
		return
	}
	to, ok := parseDate(c.Query("to"))
	if !ok {
		response.BadRequest(c, "to must be a date (YYYY-MM-DD)")
		return
	}
	if !to.IsZero() {
		// Inclusive upper bound
		to = to.Add(24*time.Hour - time.Nanosecond)
	}

	entries, err := h.ledgerService.Activity(userID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, entries)
}

// Activate switches the supply on at the controller
// POST /api/v1/meter/activate
func (h *MeterHandler) Activate(c *gin.Context) {
	h.setSupply(c, true)
}

// Deactivate switches the supply off at the controller
// POST /api/v1/meter/deactivate
func (h *MeterHandler) Deactivate(c *gin.Context) {
	h.setSupply(c, false)
}

func (h *MeterHandler) setSupply(c *gin.Context, active bool) {
	userID := middleware.GetUserID(c)

	// The caller must own a meter before touching the controller
	if _, err := h.ledgerService.GetMeter(userID); err != nil {
		h.fail(c, err)
		return
	}

	if err := h.ledgerService.SetSupply(active); err != nil {
		h.fail(c, err)
		return
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	response.Success(c, gin.H{"message": "supply " + state})
}

// fail maps ledger errors onto HTTP responses
func (h *MeterHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoMeter),
		errors.Is(err, service.ErrUnknownDestination),
		errors.Is(err, service.ErrUnknownOffer):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrSelfTransfer),
		errors.Is(err, service.ErrInsufficientUnits),
		errors.Is(err, service.ErrNotEmergency):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrPaymentFailed),
		errors.Is(err, service.ErrDeviceUnavailable):
		response.BadGateway(c, err.Error())
	default:
		response.InternalError(c, "something went wrong")
	}
}

// parseDate parses an optional YYYY-MM-DD query value. An empty value yields
// the zero time (no bound).
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RegisterRoutes registers meter routes
func (h *MeterHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	meter := rg.Group("/meter")
	meter.Use(authMiddleware)
	{
		meter.GET("", h.GetMeter)
		meter.POST("/transfer", h.Transfer)
		meter.POST("/topup", h.TopUp)
		meter.GET("/offers", h.Offers)
		meter.POST("/emergency", h.Emergency)
		meter.GET("/activity", h.Activity)
		meter.POST("/activate", h.Activate)
		meter.POST("/deactivate", h.Deactivate)
	}
}
