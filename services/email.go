package services

import (
	"fmt"
	"log"

	"dca_flow_app_go/config"
	"dca_flow_app_go/models"

	"github.com/resend/resend-go/v2"
)

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// SendEmail sends an email via Resend. In test mode the email is logged
// to the console instead of sent.
func SendEmail(cfg *config.Config, email *Email) error {
	if cfg.EmailTestMode {
		logEmailToConsole(email)
		return nil
	}

	// Validate configuration
	if cfg.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}

	// Create Resend client
	client := resend.NewClient(cfg.ResendAPIKey)

	// Build the from address
	fromAddress := fmt.Sprintf("%s <%s>", cfg.EmailFromName, cfg.EmailFrom)

	params := &resend.SendEmailRequest{
		From:    fromAddress,
		To:      email.To,
		Subject: email.Subject,
	}

	// Set body (prefer HTML if available)
	if email.HTMLBody != "" {
		params.Html = email.HTMLBody
	}
	if email.TextBody != "" {
		params.Text = email.TextBody
	}

	if params.Html == "" && params.Text == "" {
		return fmt.Errorf("email must have either HTMLBody or TextBody")
	}

	sent, err := client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("Email sent to %v (id: %s)", email.To, sent.Id)
	return nil
}

// SendEmailAsync sends an email in a goroutine so the request never
// waits on the provider
func SendEmailAsync(cfg *config.Config, email *Email) {
	// Create a copy of the email to avoid race conditions
	emailCopy := &Email{
		To:       append([]string{}, email.To...),
		Subject:  email.Subject,
		HTMLBody: email.HTMLBody,
		TextBody: email.TextBody,
	}

	go func(cfg *config.Config, email *Email) {
		if err := SendEmail(cfg, email); err != nil {
			log.Printf("Error sending async email: %v", err)
		}
	}(cfg, emailCopy)
}

func logEmailToConsole(email *Email) {
	log.Printf("--- EMAIL (test mode, not sent) ---")
	log.Printf("To: %v", email.To)
	log.Printf("Subject: %s", email.Subject)
	if email.TextBody != "" {
		log.Printf("Body: %s", email.TextBody)
	}
	log.Printf("-----------------------------------")
}

// BuildEscalationEmail creates the operator alert sent when a case is
// escalated
func BuildEscalationEmail(toEmail string, caseRecord *models.Case, reason string) *Email {
	return &Email{
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Case %s escalated", caseRecord.CaseNumber),
		TextBody: fmt.Sprintf(
			"Case %s (%s %.2f outstanding) was escalated.\n\nReason: %s\n\nReview it in the dashboard.",
			caseRecord.CaseNumber, caseRecord.Currency, caseRecord.OutstandingAmount, reason),
	}
}

// BuildAllocationFailureEmail creates the operator alert sent when
// allocation cannot succeed without intervention
func BuildAllocationFailureEmail(toEmail string, caseRecord *models.Case, code string) *Email {
	return &Email{
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Allocation failed for case %s", caseRecord.CaseNumber),
		TextBody: fmt.Sprintf(
			"Allocation for case %s failed with %s.\n\nNo retry will succeed until capacity or eligibility changes for the region.",
			caseRecord.CaseNumber, code),
	}
}
