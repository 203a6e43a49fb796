package main

import (
	"log"
	"net/http"

	controller "github.com/peopleflow/approval-engine/controller"
	"github.com/peopleflow/approval-engine/initializers"
	middleware "github.com/peopleflow/approval-engine/middleware"
	service "github.com/peopleflow/approval-engine/service"

	"github.com/gin-gonic/gin"
)

func init() {
	if err := initializers.LoadEnv(); err != nil {
		log.Printf("No .env file loaded: %s", err)
	}
	if err := initializers.ConnectDB(); err != nil {
		log.Fatalf("[CRITICAL] Failed to initialize database connection: %s", err)
	}
	if err := initializers.Migrate(); err != nil {
		log.Fatalf("[CRITICAL] Failed to run database migrations: %s", err)
	}
}

func main() {
	workflowService, err := service.NewWorkflowService(initializers.DB)
	if err != nil {
		log.Fatalf("Failed to initialize workflow service: %s", err)
	}

	workflowController := controller.NewWorkflowController(workflowService)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())

	// Global rate limiter for most routes
	router.Use(middleware.GlobalRateLimiter.Limit())

	// State-changing workflow routes get stricter rate limiting
	router.POST("/submissions",
		middleware.StrictRateLimiter.Limit(),
		workflowController.CreateSubmission)
	router.POST("/actions/:id/decision",
		middleware.StrictRateLimiter.Limit(),
		workflowController.RecordDecision)
	router.POST("/submissions/:id/withdraw",
		middleware.StrictRateLimiter.Limit(),
		workflowController.Withdraw)
	router.POST("/actions/:id/escalate",
		middleware.StrictRateLimiter.Limit(),
		workflowController.Escalate)

	// Comments and attachments
	router.POST("/submissions/:id/comments", workflowController.AddComment)
	router.GET("/submissions/:id/comments", workflowController.ListComments)

	// Delegations
	router.POST("/delegations", workflowController.CreateDelegation)
	router.DELETE("/delegations/:id", workflowController.RevokeDelegation)
	router.GET("/delegations", workflowController.ListDelegations)

	// Read endpoints
	router.GET("/submissions/:id", workflowController.GetSubmission)
	router.GET("/actions/pending", workflowController.GetPendingActions)
	router.GET("/search", workflowController.SearchSubmissions)

	// Healthcheck endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.Run(":8080")
}
