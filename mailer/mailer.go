// Package mailer delivers verification and password reset links.
//
// [Publisher] hands each message to a RabbitMQ queue for an out-of-process
// mail worker. [LogDispatcher] writes the message to a logrus logger and is
// meant for local development.
package mailer

import (
	"net/url"
	"time"
)

// Kind names the template the mail worker should render.
type Kind string

const (
	KindVerification  Kind = "email_verification"
	KindPasswordReset Kind = "password_reset"
)

// Message is the JSON body published for every outbound link.
type Message struct {
	Kind     Kind      `json:"kind"`
	Email    string    `json:"email"`
	Token    string    `json:"token"`
	Link     string    `json:"link,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// Links turns raw tokens into the URLs placed in emails. An empty base leaves
// Message.Link empty and the worker builds the URL itself.
type Links struct {
	VerifyBaseURL string
	ResetBaseURL  string
}

func (l Links) build(kind Kind, token string) string {
	base := l.VerifyBaseURL
	if kind == KindPasswordReset {
		base = l.ResetBaseURL
	}
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
