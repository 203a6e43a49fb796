package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	model "github.com/peopleflow/approval-engine/models"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Attachment is the metadata stored for one uploaded file on a comment.
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// appendEntry inserts one row into the submission's append-only trail. The
// trail is advisory relative to the state transition that produced it: an
// insert failure is logged loudly and must never roll back the authoritative
// transition. On Postgres any errored statement aborts the enclosing
// transaction, so the insert runs under a savepoint and a failure rolls back
// to it, leaving the rest of the transaction usable.
func (s *WorkflowService) appendEntry(tx *gorm.DB, submissionID string, actionID, authorID *string, content, entryType string, isInternal bool, attachments datatypes.JSON) {
	entry := model.SubmissionComment{
		SubmissionID: submissionID,
		ActionID:     actionID,
		AuthorID:     authorID,
		Content:      content,
		Type:         entryType,
		IsInternal:   isInternal,
		Attachments:  attachments,
	}
	if err := tx.SavePoint("audit_entry").Error; err != nil {
		log.Printf("[appendEntry] AUDIT WRITE FAILED for submission %s (type %s): %v", submissionID, entryType, err)
		return
	}
	if err := tx.Create(&entry).Error; err != nil {
		log.Printf("[appendEntry] AUDIT WRITE FAILED for submission %s (type %s): %v", submissionID, entryType, err)
		if rbErr := tx.RollbackTo("audit_entry").Error; rbErr != nil {
			log.Printf("[appendEntry] Error rolling back to savepoint: %v", rbErr)
		}
	}
}

// AddComment posts a human-authored comment on a submission, optionally with
// one uploaded attachment. Internal comments stay hidden from the requester.
func (s *WorkflowService) AddComment(submissionID, actorID, content string, isInternal bool, fileBytes []byte, fileName, contentType string) (*model.SubmissionComment, error) {
	if content == "" && len(fileBytes) == 0 {
		return nil, &ValidationError{Detail: "comment content is required"}
	}

	var sub model.Submission
	if err := s.db.First(&sub, "id = ?", submissionID).Error; err != nil {
		log.Printf("[AddComment] Error fetching submission %s: %v", submissionID, err)
		return nil, fmt.Errorf("failed to fetch submission: %w", err)
	}

	var attachments datatypes.JSON
	if len(fileBytes) > 0 {
		att, err := s.uploadAttachment(fileBytes, fileName, contentType)
		if err != nil {
			log.Printf("[AddComment] Error uploading attachment: %v", err)
			return nil, err
		}
		attJSON, err := json.Marshal([]Attachment{*att})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal attachment metadata: %w", err)
		}
		attachments = datatypes.JSON(attJSON)
	}

	comment := model.SubmissionComment{
		SubmissionID: submissionID,
		AuthorID:     &actorID,
		Content:      content,
		Type:         model.CommentTypeComment,
		IsInternal:   isInternal,
		Attachments:  attachments,
	}
	if err := s.db.Create(&comment).Error; err != nil {
		log.Printf("[AddComment] Error creating comment: %v", err)
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	log.Printf("[AddComment] Comment %s added to submission %s", comment.ID, submissionID)
	return &comment, nil
}

// uploadAttachment stores the file in the configured S3 bucket and returns
// its metadata.
func (s *WorkflowService) uploadAttachment(fileBytes []byte, fileName, contentType string) (*Attachment, error) {
	if s.s3Client == nil {
		return nil, &ValidationError{Detail: "attachment storage is not configured"}
	}

	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("bucket name not configured")
	}

	fileID := fmt.Sprintf("%d-%s", time.Now().Unix(), fileName)
	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(fileID),
		Body:        bytes.NewReader(fileBytes),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachment to S3: %w", err)
	}

	fileURL := fmt.Sprintf("%s/%s/%s", os.Getenv("S3_PUBLIC_URL"), bucket, fileID)
	log.Printf("[uploadAttachment] Attachment stored at %s", fileURL)

	return &Attachment{
		Name:        fileName,
		URL:         fileURL,
		Size:        int64(len(fileBytes)),
		ContentType: contentType,
	}, nil
}

// ListComments returns a submission's trail oldest first. When the viewer is
// the requester, internal entries are filtered out so they see outcomes but
// not internal deliberation.
func (s *WorkflowService) ListComments(submissionID, viewerID string) ([]model.SubmissionComment, error) {
	var sub model.Submission
	if err := s.db.First(&sub, "id = ?", submissionID).Error; err != nil {
		log.Printf("[ListComments] Error fetching submission %s: %v", submissionID, err)
		return nil, fmt.Errorf("failed to fetch submission: %w", err)
	}

	q := s.db.Where("submission_id = ?", submissionID)
	if viewerID == sub.RequesterID {
		q = q.Where("is_internal = ?", false)
	}

	var comments []model.SubmissionComment
	if err := q.Order("created_at ASC").Find(&comments).Error; err != nil {
		log.Printf("[ListComments] Error fetching comments for %s: %v", submissionID, err)
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}
	return comments, nil
}
