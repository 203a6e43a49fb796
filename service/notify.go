package services

import (
	"fmt"
	"log"
	"net/smtp"
	"os"

	model "github.com/peopleflow/approval-engine/models"
)

// notifyActionsCreated mails each newly created action's pinned approver.
// Role- and position-kind slots without a pinned user have no single
// recipient and are skipped. Delivery is best-effort.
func (s *WorkflowService) notifyActionsCreated(actions []model.ApprovalAction) {
	for _, action := range actions {
		if action.ApproverUserID == nil {
			continue
		}
		s.notifyUser(*action.ApproverUserID,
			"Approval requested",
			fmt.Sprintf("A request is waiting for your approval at step %d.", action.StepIndex))
	}
}

// notifyEscalation mails the actor an overdue action was escalated to.
func (s *WorkflowService) notifyEscalation(action model.ApprovalAction, newActorID string) {
	s.notifyUser(newActorID,
		"Overdue approval escalated to you",
		fmt.Sprintf("An overdue approval at step %d has been escalated to you.", action.StepIndex))
}

func (s *WorkflowService) notifyUser(userID, subject, body string) {
	from := os.Getenv("SMTP_FROM")
	password := os.Getenv("SMTP_PASSWORD")
	if from == "" || password == "" {
		return
	}

	var user model.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		log.Printf("[notifyUser] Error fetching user %s: %v", userID, err)
		return
	}
	if user.Email == "" {
		return
	}

	smtpHost := "smtp.gmail.com"
	smtpPort := "587"

	html := fmt.Sprintf(`
	<html>
	<body>
		<h2>%s</h2>
		<p>Dear %s,</p>
		<p>%s</p>
		<p>Please sign in to review it.</p>
		<p>Best regards,<br>HR Workflow</p>
	</body>
	</html>
`, subject, user.Name, body)

	message := []byte("Subject: " + subject + "\r\n" +
		"From: " + from + "\r\n" +
		"To: " + user.Email + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
		html)

	auth := smtp.PlainAuth("", from, password, smtpHost)
	if err := smtp.SendMail(smtpHost+":"+smtpPort, auth, from, []string{user.Email}, message); err != nil {
		log.Printf("[notifyUser] Error sending email to %s: %v", user.Email, err)
		return
	}
	log.Printf("[notifyUser] Notification sent to %s", user.Email)
}
