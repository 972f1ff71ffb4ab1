package messaging

import (
	"fmt"

	"github.com/shaiso/Outreach/internal/domain"
)

// Content — содержимое сообщения для одного получателя.
type Content struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// defaultSubjects — темы писем по действиям.
var defaultSubjects = map[domain.ActionID]string{
	domain.ActionRecoverAbandonedCarts: "You left something in your cart",
	domain.ActionSendPromoCampaign:     "A special offer for you",
	domain.ActionOnboardNewSignups:     "Welcome aboard",
	domain.ActionWinbackInactive:       "We miss you",
	domain.ActionSendWeeklyDigest:      "Your weekly digest",
}

// BuildContent собирает содержимое сообщения для run'а.
//
// Параметры run могут переопределить тему ("subject") и текст ("body");
// иначе используется шаблон действия.
func BuildContent(run *domain.Run, recipient domain.Recipient) Content {
	subject := defaultSubjects[run.ActionID]
	if subject == "" {
		subject = string(run.ActionID)
	}
	if v, ok := run.Params["subject"].(string); ok && v != "" {
		subject = v
	}

	body := fmt.Sprintf("Hi %s,\n\nThis message was sent by the %s workflow.", recipient.Email, run.ActionID)
	if v, ok := run.Params["body"].(string); ok && v != "" {
		body = v
	}

	return Content{Subject: subject, Body: body}
}
