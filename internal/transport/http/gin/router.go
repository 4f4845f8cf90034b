package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/bpms/internal/domain"
	redisrepo "github.com/kirinyoku/bpms/internal/repository/redis"
	"github.com/kirinyoku/bpms/internal/service"
	"github.com/kirinyoku/bpms/internal/service/auth"
	"github.com/kirinyoku/bpms/internal/service/lifecycle"
	"github.com/kirinyoku/bpms/internal/service/tickets"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// NewRouter wires the JSON API. idem may be nil, in which case
// Idempotency-Key headers are ignored.
func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/sign-in", handleSignIn(svcs))
		authGroup.POST("/sign-out", handleSignOut(svcs))
		authGroup.GET("/session", handleSession(svcs))
	}

	manager := RequireRole(svcs.Auth, domain.RoleEventManager)

	events := r.Group("/events", manager)
	{
		events.POST("", handleCreateDraft(svcs))
		events.POST("/onboard", handleCreateActiveDirect(svcs))

		events.GET("/active", handleGetActive(svcs))
		events.PUT("/active", handleEditActive(svcs))
		events.POST("/active/toggle", handleToggleActivation(svcs))

		events.GET("/history", handleHistory(svcs))
		events.GET("/history/previous", handlePreviousEvent(svcs))
		events.POST("/history/:id/activate", handleActivateFromHistory(svcs))

		events.POST("/:id/tickets", handleGenerateTickets(svcs, idem))
		events.GET("/:id/tickets", handleListTickets(svcs))
		events.POST("/:id/tickets/:code/redeem", handleRedeemTicket(svcs))
	}

	r.GET("/dashboard", manager, handleDashboard(svcs))

	return r
}

// --- auth ---

// @Summary  Sign in with a demo account
// @Tags     auth
// @Param    req body  SignInRequest true "credentials"
// @Success  200 {object} domain.Session
// @Failure  401 {object} ErrorResponse
// @Failure  422 {object} ErrorResponse
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /auth/sign-in [post]
func handleSignIn(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		sess, err := svcs.Auth.SignIn(c.Request.Context(), req.Email, req.Password, "ip:"+c.ClientIP())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, sess)
	}
}

// @Summary  Sign out and clear the working event
// @Tags     auth
// @Success  204
// @Router   /auth/sign-out [post]
func handleSignOut(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svcs.Auth.SignOut(c.Request.Context()); err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary  Current session
// @Tags     auth
// @Success  200 {object} SessionResponse
// @Router   /auth/session [get]
func handleSession(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svcs.Auth.Current(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, SessionResponse{Session: sess})
	}
}

// --- events ---

// @Summary  Create a draft event
// @Tags     events
// @Param    req body  EventRequest true "event fields"
// @Success  201 {object} domain.Event
// @Failure  422 {object} ErrorResponse
// @Router   /events [post]
func handleCreateDraft(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ev, err := svcs.Lifecycle.CreateDraft(c.Request.Context(), req.fields())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, ev)
	}
}

// @Summary  Create an event that is active immediately
// @Tags     events
// @Param    req body  EventRequest true "event fields"
// @Success  201 {object} domain.Event
// @Failure  422 {object} ErrorResponse
// @Router   /events/onboard [post]
func handleCreateActiveDirect(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ev, err := svcs.Lifecycle.CreateActiveDirect(c.Request.Context(), req.fields())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, ev)
	}
}

// @Summary  Current working event
// @Tags     events
// @Success  200 {object} EventResponse
// @Router   /events/active [get]
func handleGetActive(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ev, err := svcs.Lifecycle.Active(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, EventResponse{Event: ev})
	}
}

// @Summary  Edit the working draft
// @Tags     events
// @Param    req body  EventRequest true "event fields"
// @Success  200 {object} domain.Event
// @Failure  409 {object} ErrorResponse "not a draft"
// @Failure  422 {object} ErrorResponse
// @Router   /events/active [put]
func handleEditActive(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ev, err := svcs.Lifecycle.Edit(c.Request.Context(), req.fields())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ev)
	}
}

// @Summary  Toggle the working event between draft and active
// @Tags     events
// @Success  200 {object} domain.Event
// @Failure  409 {object} ErrorResponse
// @Router   /events/active/toggle [post]
func handleToggleActivation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ev, err := svcs.Lifecycle.ToggleActivation(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ev)
	}
}

// @Summary  Event history
// @Tags     events
// @Success  200 {object} EventListResponse
// @Router   /events/history [get]
func handleHistory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Lifecycle.History(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, EventListResponse{Events: list})
	}
}

// @Summary  Most recent event other than the working one
// @Tags     events
// @Success  200 {object} EventResponse
// @Router   /events/history/previous [get]
func handlePreviousEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ev, err := svcs.Lifecycle.PreviousEvent(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, EventResponse{Event: ev})
	}
}

// @Summary  Activate an event from history
// @Tags     events
// @Param    id  path  string  true  "Event ID"
// @Param    req body  ActivateRequest true "confirmation"
// @Success  200 {object} domain.Event
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /events/history/{id}/activate [post]
func handleActivateFromHistory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ActivateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ev, err := svcs.Lifecycle.ActivateFromHistory(c.Request.Context(), c.Param("id"), req.Confirm)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ev)
	}
}

// --- tickets ---

// @Summary  Generate tickets (idempotent)
// @Tags     tickets
// @Param    id  path  string  true  "Event ID"
// @Param    req body  GenerateTicketsRequest true "batch size, 1..1000"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} GenerateTicketsResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "idempotency key in progress"
// @Router   /events/{id}/tickets [post]
func handleGenerateTickets(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID := c.Param("id")

		var req GenerateTicketsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "count must be between 1 and "+strconv.Itoa(maxTicketsPerRequest))
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemTickets(eventID, idemKey)

			if replayIdempotent(c, idem, idemStorageKey, idemKey) {
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if replayIdempotent(c, idem, idemStorageKey, idemKey) {
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		batch, err := svcs.Tickets.Generate(c.Request.Context(), eventID, req.Count)
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := GenerateTicketsResponse{EventID: eventID, Tickets: batch}

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, b)
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

func replayIdempotent(c *gin.Context, idem *redisrepo.IdempotencyStore, storageKey, idemKey string) bool {
	payload, ok, _ := idem.GetResult(c.Request.Context(), storageKey)
	if !ok {
		return false
	}

	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", payload)
	return true
}

// @Summary  List tickets with derived status
// @Tags     tickets
// @Param    id  path  string  true  "Event ID"
// @Success  200 {object} TicketListResponse
// @Router   /events/{id}/tickets [get]
func handleListTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID := c.Param("id")

		list, err := svcs.Tickets.List(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}

		counts, err := svcs.Tickets.Counts(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, TicketListResponse{
			EventID: eventID,
			Tickets: list,
			Counts:  counts,
		})
	}
}

// @Summary  Redeem a ticket
// @Tags     tickets
// @Param    id    path  string  true  "Event ID"
// @Param    code  path  string  true  "Ticket code"
// @Success  200 {object} domain.Ticket
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "used or expired"
// @Router   /events/{id}/tickets/{code}/redeem [post]
func handleRedeemTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := svcs.Tickets.Redeem(c.Request.Context(), c.Param("id"), c.Param("code"))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, t)
	}
}

// --- dashboard ---

// @Summary  Dashboard summary
// @Tags     dashboard
// @Success  200 {object} domain.Summary
// @Success  304
// @Router   /dashboard [get]
func handleDashboard(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := svcs.Dashboard.Summary(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithETag(c, http.StatusOK, sum, "private, no-cache")
	}
}

// --- helpers ---

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Fields: verr.Fields})
		return
	}

	var rl auth.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: rl.Error()})
		return
	}

	switch {
	// auth service
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid email or password"})
	// lifecycle service
	case errors.Is(err, lifecycle.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, lifecycle.ErrNoActiveEvent):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "no active event"})
	case errors.Is(err, lifecycle.ErrNotDraft):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "only draft events can be edited"})
	case errors.Is(err, lifecycle.ErrEventCompleted):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "event is completed"})
	case errors.Is(err, lifecycle.ErrNotConfirmed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "activation must be confirmed"})
	// tickets service
	case errors.Is(err, tickets.ErrEventIDRequired):
		badRequest(c, "event id is required")
	case errors.Is(err, tickets.ErrInvalidCount):
		badRequest(c, "count must be positive")
	case errors.Is(err, tickets.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, tickets.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not found"})
	case errors.Is(err, tickets.ErrTicketUsed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "ticket already used"})
	case errors.Is(err, tickets.ErrTicketExpired):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "ticket expired"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
