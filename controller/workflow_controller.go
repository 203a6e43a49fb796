package controller

import (
	"errors"
	"log"
	"net/http"

	service "github.com/peopleflow/approval-engine/service"

	"github.com/gin-gonic/gin"
)

// WorkflowController manages HTTP requests for the approval workflow engine.
type WorkflowController struct {
	service *service.WorkflowService
}

// NewWorkflowController initializes the controller with the service
func NewWorkflowController(service *service.WorkflowService) *WorkflowController {
	return &WorkflowController{service}
}

// respondError maps the engine's error taxonomy onto HTTP statuses.
// Configuration errors stay generic for the client and loud in the log.
func respondError(ctx *gin.Context, err error) {
	var authErr *service.AuthorizationError
	var conflictErr *service.StateConflictError
	var validationErr *service.ValidationError
	var configErr *service.ConfigurationError

	switch {
	case errors.As(err, &authErr):
		ctx.JSON(http.StatusForbidden, gin.H{"error": "not permitted", "details": authErr.Error()})
	case errors.As(err, &conflictErr):
		ctx.JSON(http.StatusConflict, gin.H{"error": "already decided", "details": conflictErr.Error()})
	case errors.As(err, &validationErr):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &configErr):
		log.Printf("[respondError] Workflow configuration error: %v", configErr)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "cannot process this request"})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CreateSubmission instantiates a request type for a requester and activates
// the first approval step.
func (c *WorkflowController) CreateSubmission(ctx *gin.Context) {
	var req struct {
		RequestTypeID string `json:"request_type_id" binding:"required"`
		RequesterID   string `json:"requester_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission payload", "details": err.Error()})
		return
	}

	sub, err := c.service.CreateSubmission(req.RequestTypeID, req.RequesterID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"message":    "Submission created",
		"submission": sub,
	})
}

// RecordDecision applies an approve or reject decision to one approval action.
func (c *WorkflowController) RecordDecision(ctx *gin.Context) {
	actionID := ctx.Param("id")
	if actionID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Action ID required"})
		return
	}

	var req struct {
		ActorID  string `json:"actor_id" binding:"required"`
		Decision string `json:"decision" binding:"required"`
		Reason   string `json:"reason"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid decision payload", "details": err.Error()})
		return
	}

	action, err := c.service.RecordDecision(actionID, req.ActorID, req.Decision, req.Reason)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Decision recorded",
		"action":  action,
	})
}

// Withdraw lets the requester withdraw a pending submission.
func (c *WorkflowController) Withdraw(ctx *gin.Context) {
	submissionID := ctx.Param("id")
	if submissionID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Submission ID required"})
		return
	}

	var req struct {
		ActorID string `json:"actor_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid withdraw payload", "details": err.Error()})
		return
	}

	if err := c.service.Withdraw(submissionID, req.ActorID); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Submission withdrawn"})
}

// Escalate grants a new actor the right to decide an overdue action.
func (c *WorkflowController) Escalate(ctx *gin.Context) {
	actionID := ctx.Param("id")
	if actionID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Action ID required"})
		return
	}

	var req struct {
		NewActorID string `json:"new_actor_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid escalation payload", "details": err.Error()})
		return
	}

	if err := c.service.Escalate(actionID, req.NewActorID); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Action escalated"})
}

// GetSubmission returns a submission with its actions and visible comments.
func (c *WorkflowController) GetSubmission(ctx *gin.Context) {
	submissionID := ctx.Param("id")
	if submissionID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Submission ID required"})
		return
	}
	viewerID := ctx.Query("viewer_id")

	sub, err := c.service.GetSubmission(submissionID, viewerID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, sub)
}

// GetPendingActions returns the approval inbox for a user.
func (c *WorkflowController) GetPendingActions(ctx *gin.Context) {
	userID := ctx.Query("user_id")
	if userID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'user_id' is required"})
		return
	}

	items, err := c.service.ListPendingActionsForUser(userID)
	if err != nil {
		log.Printf("Error fetching pending actions: %v", err)
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Pending actions retrieved successfully",
		"items":   items,
	})
}

// SearchSubmissions queries the submission search index.
func (c *WorkflowController) SearchSubmissions(ctx *gin.Context) {
	query := ctx.Query("q")
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	results, err := c.service.SearchSubmissions(query)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Search completed successfully",
		"results": results,
	})
}
