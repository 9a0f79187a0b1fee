package mail

import (
	"time"

	"github.com/datavault/datavault/internal/render"
	"github.com/datavault/datavault/params"
)

func SendNewPasskeyAlert(sender MailSender, toEmail string, displayName string, deviceLabel string, registeredAt time.Time) error {
	if deviceLabel == "" {
		deviceLabel = "unnamed device"
	}
	body, err := render.RenderHTML("mail/new-passkey", map[string]interface{}{
		"displayName":  displayName,
		"deviceLabel":  deviceLabel,
		"registeredAt": registeredAt.Format("2006-01-02 15:04 MST"),
	})
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "A new passkey was registered on your account",
		Body:    body,
		IsHTML:  true,
	})
}

func SendFailedAttemptsAlert(sender MailSender, toEmail string, displayName string, attemptCount int64) error {
	body, err := render.RenderHTML("mail/failed-attempts", map[string]interface{}{
		"displayName":   displayName,
		"attemptCount":  attemptCount,
		"windowMinutes": int(params.FailedLoginAlertWindow.Minutes()),
	})
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Failed sign-in attempts on your account",
		Body:    body,
		IsHTML:  true,
	})
}
