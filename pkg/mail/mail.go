// Package mail sends the email confirmation messages.
//
// Callers depend on the Mail interface; SMTP is the only transport wired today.
package mail

import (
	"context"
	"io"
)

// Message is a provider-agnostic email.
type Message struct {
	// From overrides the sender configured on the transport.
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mail delivers messages.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
