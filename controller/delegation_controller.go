package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CreateDelegation records a time-bounded delegation of approval authority.
func (c *WorkflowController) CreateDelegation(ctx *gin.Context) {
	var req struct {
		DelegatorID string     `json:"delegator_id" binding:"required"`
		DelegateID  string     `json:"delegate_id" binding:"required"`
		StartsAt    *time.Time `json:"starts_at"`
		EndsAt      *time.Time `json:"ends_at"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid delegation payload", "details": err.Error()})
		return
	}

	startsAt := time.Now()
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}

	del, err := c.service.CreateDelegation(req.DelegatorID, req.DelegateID, startsAt, req.EndsAt)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"message":    "Delegation created",
		"delegation": del,
	})
}

// RevokeDelegation deactivates a delegation; only its delegator may do so.
func (c *WorkflowController) RevokeDelegation(ctx *gin.Context) {
	delegationID := ctx.Param("id")
	if delegationID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Delegation ID required"})
		return
	}

	var req struct {
		ActorID string `json:"actor_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid revoke payload", "details": err.Error()})
		return
	}

	if err := c.service.RevokeDelegation(delegationID, req.ActorID); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Delegation revoked"})
}

// ListDelegations returns delegations involving a user, newest first.
func (c *WorkflowController) ListDelegations(ctx *gin.Context) {
	userID := ctx.Query("user_id")
	if userID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'user_id' is required"})
		return
	}

	delegations, err := c.service.ListDelegations(userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message":     "Delegations retrieved successfully",
		"delegations": delegations,
	})
}
