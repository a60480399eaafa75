package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogDispatcher logs links instead of sending them. Tokens are logged in full,
// so it must not be used in production.
type LogDispatcher struct {
	logger logrus.FieldLogger
	links  Links
}

func NewLogDispatcher(logger logrus.FieldLogger, links Links) *LogDispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogDispatcher{logger: logger, links: links}
}

func (d *LogDispatcher) SendVerificationLink(_ context.Context, email, token string) error {
	d.log(KindVerification, email, token)
	return nil
}

func (d *LogDispatcher) SendPasswordResetLink(_ context.Context, email, token string) error {
	d.log(KindPasswordReset, email, token)
	return nil
}

func (d *LogDispatcher) log(kind Kind, email, token string) {
	d.logger.WithFields(logrus.Fields{
		"kind":  kind,
		"email": email,
		"token": token,
		"link":  d.links.build(kind, token),
	}).Info("outbound mail")
}
