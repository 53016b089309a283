package service

import (
	"fmt"
	"strings"

	"scicat/internal/clients"
	"scicat/internal/models"
)

func acknowledgementMail(site models.Site, sub *models.Submission) clients.Mail {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", sub.SubmitterName)
	fmt.Fprintf(&b, "Thank you for submitting %q to the %s.\n", sub.ResourceName, site.Name)
	fmt.Fprintf(&b, "Your submission has reference #%d. A curator will review it and may contact you with questions.\n\n", sub.ID)
	fmt.Fprintf(&b, "%s team\n%s\n", site.DigestSubject, site.BaseURL)

	return clients.Mail{
		To:      sub.SubmitterEmail,
		ToName:  sub.SubmitterName,
		Subject: fmt.Sprintf("[%s] Submission received: %s", site.DigestSubject, sub.ResourceName),
		Text:    b.String(),
	}
}

func contactMail(site models.Site, sub *models.Submission, subject, message string) clients.Mail {
	if subject == "" {
		subject = fmt.Sprintf("Question about your submission %q", sub.ResourceName)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", sub.SubmitterName)
	b.WriteString(strings.TrimSpace(message))
	fmt.Fprintf(&b, "\n\nReference: submission #%d (%s)\n", sub.ID, sub.ResourceName)
	fmt.Fprintf(&b, "Please reply to this message to continue the review.\n\n%s team\n", site.DigestSubject)

	return clients.Mail{
		To:      sub.SubmitterEmail,
		ToName:  sub.SubmitterName,
		Subject: fmt.Sprintf("[%s] %s", site.DigestSubject, subject),
		Text:    b.String(),
	}
}

func reminderMessage(sub *models.Submission, maxContacts int) string {
	return fmt.Sprintf(
		"We are still waiting for your reply regarding %q. This is reminder %d of %d; "+
			"without a response the submission will be closed.",
		sub.ResourceName, sub.ContactCount, maxContacts,
	)
}

func confirmationMail(site models.Site, sub *models.Subscription) clients.Mail {
	link := fmt.Sprintf("%s/api/v1/subscriptions/%s/confirm", site.BaseURL, sub.Token)
	var b strings.Builder
	if sub.Name != "" {
		fmt.Fprintf(&b, "Hello %s,\n\n", sub.Name)
	}
	fmt.Fprintf(&b, "Please confirm your %s digest subscription to the %s by opening:\n\n%s\n\n", sub.Frequency, site.Name, link)
	b.WriteString("If you did not request this, ignore this message.\n")

	return clients.Mail{
		To:      sub.Email,
		ToName:  sub.Name,
		Subject: fmt.Sprintf("[%s] Confirm your subscription", site.DigestSubject),
		Text:    b.String(),
	}
}
