package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oakline/upkeep/internal/approval"
	"github.com/oakline/upkeep/internal/triage"
)

// registerRoutes wires all API routes onto the router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth(opts))

	api := router.Group("/api")
	api.POST("/triage", handleTriageStart(opts.Triage))
	api.POST("/triage/:id/message", handleTriageMessage(opts.Triage))
	api.GET("/approvals/:token", handleApprovalGet(opts.Approvals))
	api.POST("/approvals/:token", handleApprovalPost(opts.Approvals))
	api.GET("/events", handleEvents(opts.Registry))
}

func handleHealth(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":      "ok",
			"connections": opts.Registry.Len(),
		}
		if opts.Dispatcher != nil {
			body["notify"] = opts.Dispatcher.Stats()
		}
		c.JSON(http.StatusOK, body)
	}
}

type triageStartRequest struct {
	RequesterID string `json:"requester_id"`
	Message     string `json:"message" binding:"required"`
}

type triageMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

type triageResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Completed bool   `json:"completed"`
	CaseID    string `json:"case_id,omitempty"`
}

func handleTriageStart(mgr *triage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triageStartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		reply, err := mgr.Start(c.Request.Context(), req.RequesterID, req.Message)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, toTriageResponse(reply))
	}
}

func handleTriageMessage(mgr *triage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triageMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		reply, err := mgr.Message(c.Request.Context(), c.Param("id"), req.Message)
		switch {
		case errors.Is(err, triage.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		case errors.Is(err, triage.ErrSessionCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "session already completed"})
			return
		case err != nil:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, toTriageResponse(reply))
	}
}

func toTriageResponse(reply *triage.Reply) triageResponse {
	return triageResponse{
		SessionID: reply.SessionID,
		Reply:     reply.Content,
		Completed: reply.Completed,
		CaseID:    reply.CaseID,
	}
}

type approvalPostRequest struct {
	Decision     string     `json:"decision" binding:"required"`
	CounterStart *time.Time `json:"counter_start"`
	CounterEnd   *time.Time `json:"counter_end"`
	Reason       string     `json:"reason"`
}

// handleApprovalGet serves the links embedded in occupant notifications.
// Without a decision query parameter it reports token status; with one it
// records the response, so a plain click from an email works.
func handleApprovalGet(svc *approval.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		decision := c.Query("decision")
		if decision == "" {
			status, err := svc.TokenStatus(token)
			if err != nil {
				writeApprovalError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": status})
			return
		}
		respond(c, svc, token, decision, nil)
	}
}

func handleApprovalPost(svc *approval.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req approvalPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "decision is required"})
			return
		}
		var counter *approval.CounterProposal
		if req.CounterStart != nil && req.CounterEnd != nil {
			counter = &approval.CounterProposal{
				Start:  *req.CounterStart,
				End:    *req.CounterEnd,
				Reason: req.Reason,
			}
		}
		respond(c, svc, c.Param("token"), req.Decision, counter)
	}
}

func respond(c *gin.Context, svc *approval.Service, token, decision string, counter *approval.CounterProposal) {
	var approved bool
	switch decision {
	case "approve":
		approved = true
	case "decline":
		approved = false
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be approve or decline"})
		return
	}

	status, err := svc.Respond(c.Request.Context(), token, approved, counter)
	if err != nil {
		writeApprovalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func writeApprovalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, approval.ErrTokenExpired):
		c.JSON(http.StatusGone, gin.H{"error": "token expired"})
	case errors.Is(err, approval.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "appointment already resolved"})
	case errors.Is(err, approval.ErrBadSignature), errors.Is(err, approval.ErrMalformedToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
