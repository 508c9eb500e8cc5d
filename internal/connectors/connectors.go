package connectors

import (
	"context"

	"billops/internal"
)

// MailConnector fetches raw messages from a bill mailbox.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
