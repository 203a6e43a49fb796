package controller

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AddComment posts a comment on a submission. Multipart form with fields
// author_id, content, is_internal and an optional file attachment.
func (c *WorkflowController) AddComment(ctx *gin.Context) {
	submissionID := ctx.Param("id")
	if submissionID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Submission ID required"})
		return
	}

	actorID := ctx.PostForm("author_id")
	if actorID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "author_id is required"})
		return
	}
	content := ctx.PostForm("content")
	isInternal := ctx.PostForm("is_internal") == "true"

	var fileBytes []byte
	var fileName, contentType string
	file, header, err := ctx.Request.FormFile("file")
	if err == nil {
		defer file.Close()
		fileBytes, err = io.ReadAll(file)
		if err != nil {
			log.Printf("[AddComment] Error reading attachment: %v", err)
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read attachment"})
			return
		}
		fileName = header.Filename
		contentType = header.Header.Get("Content-Type")
	}

	comment, err := c.service.AddComment(submissionID, actorID, content, isInternal, fileBytes, fileName, contentType)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Comment added",
		"comment": comment,
	})
}

// ListComments returns a submission's trail as visible to the viewer.
func (c *WorkflowController) ListComments(ctx *gin.Context) {
	submissionID := ctx.Param("id")
	if submissionID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Submission ID required"})
		return
	}
	viewerID := ctx.Query("viewer_id")

	comments, err := c.service.ListComments(submissionID, viewerID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message":  "Comments retrieved successfully",
		"comments": comments,
	})
}
