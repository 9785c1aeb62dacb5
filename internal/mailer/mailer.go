package mailer

import "context"

type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers fire-and-forget notification email. Failures are logged
// by callers and never abort the surrounding operation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
