package storage

import (
	"context"

	"ammclient/internal/model"
)

// Journal is a durable record of submitted transactions.
type Journal interface {
	PutSubmission(ctx context.Context, sub model.Submission) error
	PendingSubmissions(ctx context.Context) ([]model.Submission, error)
}
