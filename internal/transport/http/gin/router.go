package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/okozachenko/starbook/internal/domain"
	"github.com/okozachenko/starbook/internal/service"
	"github.com/okozachenko/starbook/internal/service/booking"
	"github.com/okozachenko/starbook/internal/service/catalog"
	"github.com/okozachenko/starbook/internal/service/payment"
	"github.com/okozachenko/starbook/internal/service/ticketing"
)

func NewRouter(
	svcs *service.Services,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health + metrics
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public catalog
	r.GET("/events", handleListEvents(svcs))
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/events/:id/availability", handleGetAvailability(svcs))

	// Everything below needs a caller identity
	authed := r.Group("", ActorMiddleware())
	{
		authed.POST("/bookings", handleCreateBooking(svcs))
		authed.GET("/bookings", handleListMyBookings(svcs))
		authed.GET("/bookings/:id", handleGetBooking(svcs))
		authed.POST("/bookings/:id/cancel", handleCancelBooking(svcs))
		authed.POST("/bookings/:id/complete", handleCompleteBooking(svcs))

		authed.POST("/payments/confirm", handleConfirmPayment(svcs))
		authed.POST("/payments/process", handleProcessPayment(svcs))

		authed.POST("/bookings/:id/tickets", handleIssueTickets(svcs))
		authed.GET("/bookings/:id/tickets", handleListTickets(svcs))
		authed.GET("/tickets/:id/pdf", handleTicketPDF(svcs))
		authed.POST("/tickets/verify", handleVerifyTicket(svcs))

		admin := authed.Group("/admin")
		{
			admin.POST("/events", handleCreateEvent(svcs))
			admin.POST("/events/:id/ticket-types", handleAddTicketType(svcs))
			admin.POST("/discounts", handleCreateDiscount(svcs))
		}
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  List published events
// @Param    limit  query  int  false "page size"
// @Param    offset query  int  false "offset"
// @Success  200  {array}  domain.Event
// @Router   /events [get]
func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 50)
		offset := parseIntDefault(c.Query("offset"), 0)

		events, err := svcs.Catalog.ListEvents(c.Request.Context(), limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, events, "public, max-age=60", true)
	}
}

// @Summary  Get event
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Catalog.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, e, "public, max-age=60", true)
	}
}

// @Summary  Get per-type availability (advisory)
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  domain.EventWithTicketTypes
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		out, err := svcs.Catalog.Availability(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s: these numbers are advisory anyway
		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
	}
}

// @Summary  Create booking
// @Param    req body  CreateBookingRequest true "payload"
// @Success  201 {object} domain.BookingWithItems
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "not enough availability"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /bookings [post]
func handleCreateBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		reqs := make([]domain.LineItemRequest, 0, len(req.Items))
		for _, it := range req.Items {
			reqs = append(reqs, domain.LineItemRequest{
				TicketTypeID: it.TicketTypeID,
				Quantity:     it.Quantity,
			})
		}

		rlKey := "ip:" + c.ClientIP()

		b, err := svcs.Booking.Create(
			c.Request.Context(),
			actorFrom(c),
			req.EventID,
			reqs,
			req.DiscountCode,
			rlKey,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, b)
	}
}

// @Summary  List my bookings
// @Success  200 {array} domain.Booking
// @Router   /bookings [get]
func handleListMyBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookings, err := svcs.Booking.ListMine(c.Request.Context(), actorFrom(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bookings)
	}
}

// @Summary  Get booking with line items
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.BookingWithItems
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		b, err := svcs.Booking.Get(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} map[string]string
// @Failure  409 {object} ErrorResponse "already terminal"
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Booking.Cancel(c.Request.Context(), actorFrom(c), id); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	}
}

// @Summary  Mark booking completed (staff)
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} map[string]string
// @Router   /bookings/{id}/complete [post]
func handleCompleteBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Booking.MarkCompleted(c.Request.Context(), actorFrom(c), id); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "completed"})
	}
}

// @Summary  Confirm payment (idempotent via Idempotency-Key)
// @Param    req body  ConfirmPaymentRequest true "payload"
// @Success  200 {object} payment.Result
// @Failure  409 {object} ErrorResponse "state/amount/availability conflict"
// @Router   /payments/confirm [post]
func handleConfirmPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConfirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		bookingID, err := uuid.Parse(req.BookingID)
		if err != nil {
			badRequest(c, "invalid booking_id")
			return
		}

		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(c, "invalid amount")
			return
		}

		method, ok := parseMethod(req.Method)
		if !ok {
			badRequest(c, "invalid method")
			return
		}

		res, err := svcs.Payment.Confirm(c.Request.Context(), actorFrom(c), payment.ConfirmInput{
			BookingID:      bookingID,
			TransactionID:  req.TransactionID,
			Amount:         amount,
			Method:         method,
			CardLast4:      req.CardLast4,
			IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Process payment end-to-end (charge, confirm, issue)
// @Param    req body  ProcessPaymentRequest true "payload"
// @Success  200 {object} map[string]any
// @Failure  402 {object} ErrorResponse "card declined"
// @Router   /payments/process [post]
func handleProcessPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProcessPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		bookingID, err := uuid.Parse(req.BookingID)
		if err != nil {
			badRequest(c, "invalid booking_id")
			return
		}

		method, ok := parseMethod(req.Method)
		if !ok {
			badRequest(c, "invalid method")
			return
		}

		res, tickets, err := svcs.Payment.Process(
			c.Request.Context(),
			actorFrom(c),
			bookingID,
			payment.CardFacts{
				Number: req.Card.Number,
				Expiry: req.Card.Expiry,
				CVV:    req.Card.CVV,
				Holder: req.Card.Holder,
			},
			method,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"payment": res,
			"tickets": ticketResponses(tickets),
		})
	}
}

// @Summary  Issue tickets for a confirmed booking (idempotent)
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  201 {array} TicketResponse
// @Failure  409 {object} ErrorResponse "booking not confirmed"
// @Router   /bookings/{id}/tickets [post]
func handleIssueTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		tickets, err := svcs.Ticketing.Issue(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, ticketResponses(tickets))
	}
}

// @Summary  List tickets of a booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {array} TicketResponse
// @Router   /bookings/{id}/tickets [get]
func handleListTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		tickets, err := svcs.Ticketing.List(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ticketResponses(tickets))
	}
}

// @Summary  Download ticket PDF
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200 {file} application/pdf
// @Failure  404 {object} ErrorResponse
// @Router   /tickets/{id}/pdf [get]
func handleTicketPDF(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		pdf, err := svcs.Ticketing.PDF(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="ticket.pdf"`)
		c.Data(http.StatusOK, "application/pdf", pdf)
	}
}

// @Summary  Verify a scanned ticket payload (staff)
// @Param    req body  VerifyTicketRequest true "payload"
// @Success  200 {object} TicketResponse
// @Failure  400 {object} ErrorResponse "malformed payload"
// @Router   /tickets/verify [post]
func handleVerifyTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		t, err := svcs.Ticketing.Verify(c.Request.Context(), actorFrom(c), req.Payload)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ticketResponses([]domain.Ticket{*t})[0])
	}
}

// @Summary  Create event with ticket types (staff)
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} CreateEventResponse
// @Router   /admin/events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}
		ends, err := parseRFC3339(req.EndsAt)
		if err != nil {
			badRequest(c, "invalid ends_at (RFC3339)")
			return
		}

		types := make([]domain.TicketType, 0, len(req.TicketTypes))
		total := 0
		for _, in := range req.TicketTypes {
			price, err := decimal.NewFromString(in.Price)
			if err != nil {
				badRequest(c, "invalid price for ticket type "+in.Name)
				return
			}
			types = append(types, domain.TicketType{
				Name:              in.Name,
				Price:             price,
				AvailableQuantity: in.Quantity,
			})
			total += in.Quantity
		}

		if req.TotalSeats == 0 {
			req.TotalSeats = total
		}

		id, err := svcs.Catalog.CreateEvent(c.Request.Context(), actorFrom(c), domain.Event{
			Name:           req.Name,
			Venue:          req.Venue,
			Starts:         starts,
			Ends:           ends,
			TotalSeats:     req.TotalSeats,
			AvailableSeats: req.TotalSeats,
			IsActive:       true,
			IsPublished:    req.IsPublished,
		}, types)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateEventResponse{EventID: id})
	}
}

// @Summary  Add a ticket type to an event (staff)
// @Param    id  path  int  true  "Event ID"
// @Param    req body  AddTicketTypeRequest true "payload"
// @Success  201 {object} AddTicketTypeResponse
// @Router   /admin/events/{id}/ticket-types [post]
func handleAddTicketType(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req AddTicketTypeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			badRequest(c, "invalid price")
			return
		}

		id, err := svcs.Catalog.AddTicketType(c.Request.Context(), actorFrom(c), domain.TicketType{
			EventID:           eventID,
			Name:              req.Name,
			Price:             price,
			AvailableQuantity: req.Quantity,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, AddTicketTypeResponse{TicketTypeID: id})
	}
}

// @Summary  Create discount code (staff)
// @Param    req body  CreateDiscountRequest true "payload"
// @Success  201 {object} CreateDiscountResponse
// @Failure  409 {object} ErrorResponse "duplicate code"
// @Router   /admin/discounts [post]
func handleCreateDiscount(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateDiscountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		from, err := parseRFC3339(req.ValidFrom)
		if err != nil {
			badRequest(c, "invalid valid_from (RFC3339)")
			return
		}
		to, err := parseRFC3339(req.ValidTo)
		if err != nil {
			badRequest(c, "invalid valid_to (RFC3339)")
			return
		}

		d := domain.Discount{
			Code:          req.Code,
			EventID:       req.EventID,
			Kind:          domain.DiscountKind(req.Kind),
			ValidFrom:     from,
			ValidTo:       to,
			MaxUsageCount: req.MaxUsageCount,
			IsActive:      true,
		}

		switch d.Kind {
		case domain.DiscountPercentage:
			pct, err := decimal.NewFromString(req.Percentage)
			if err != nil {
				badRequest(c, "invalid percentage")
				return
			}
			d.Percentage = pct
		case domain.DiscountFixed:
			amt, err := decimal.NewFromString(req.Amount)
			if err != nil {
				badRequest(c, "invalid amount")
				return
			}
			d.Amount = amt
		}

		id, err := svcs.Catalog.CreateDiscount(c.Request.Context(), actorFrom(c), d)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateDiscountResponse{DiscountID: id})
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func parseMethod(s string) (domain.PaymentMethod, bool) {
	m := domain.PaymentMethod(s)
	switch m {
	case domain.MethodCreditCard, domain.MethodDebitCard,
		domain.MethodOnlineBanking, domain.MethodWallet:
		return m, true
	default:
		return "", false
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var capErr booking.QuantityCapError
	if errors.As(err, &capErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: capErr.Error()})
		return
	}

	switch {
	// catalog service
	case errors.Is(err, catalog.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, catalog.ErrEventConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "event conflict"})
	case errors.Is(err, catalog.ErrCodeConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "discount code conflict"})
	case errors.Is(err, catalog.ErrInvalidEvent),
		errors.Is(err, catalog.ErrInvalidPricing):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, catalog.ErrAccessDenied),
		errors.Is(err, booking.ErrAccessDenied),
		errors.Is(err, payment.ErrAccessDenied),
		errors.Is(err, ticketing.ErrAccessDenied):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})

	// booking service
	case errors.Is(err, booking.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, booking.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, booking.ErrEventNotOnSale):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "event is not on sale"})
	case errors.Is(err, booking.ErrTicketTypeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket type not found"})
	case errors.Is(err, booking.ErrNotEnoughAvailable),
		errors.Is(err, payment.ErrNotEnoughAvailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "not enough tickets available"})
	case errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, payment.ErrBookingNotFound),
		errors.Is(err, ticketing.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
	case errors.Is(err, booking.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking status does not allow this transition"})
	case errors.Is(err, booking.ErrDiscountNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "discount code not found"})
	case errors.Is(err, booking.ErrDiscountNotUsable),
		errors.Is(err, booking.ErrDiscountWrongEvent):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, booking.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many booking attempts"})

	// payment service
	case errors.Is(err, payment.ErrInvalidBookingState):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking is not awaiting payment"})
	case errors.Is(err, payment.ErrAmountMismatch):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "payment amount does not match booking amount"})
	case errors.Is(err, payment.ErrDiscountExhausted):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "discount code has no usages left"})
	case errors.Is(err, payment.ErrDuplicateTxn):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "transaction id already recorded"})
	case errors.Is(err, payment.ErrConfirmInFlight):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "confirmation in progress"})
	case errors.Is(err, payment.ErrInvalidCard):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid card details"})
	case errors.Is(err, payment.ErrCardDeclined):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: "card declined"})

	// ticketing service
	case errors.Is(err, ticketing.ErrBookingNotConfirmed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking is not confirmed"})
	case errors.Is(err, ticketing.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not found"})
	case errors.Is(err, ticketing.ErrBadPayload):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed ticket payload"})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
