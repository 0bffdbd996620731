package orchestrator

import (
	"context"

	"github.com/seedpost/seedpost/internal/discovery"
	"github.com/seedpost/seedpost/internal/transfer"
)

//go:generate mockgen -destination=mocks/mock_transferrer.go -package=mocks -source=types.go Transferrer

// Transferrer runs one transfer to a terminal state
type Transferrer interface {
	Run(ctx context.Context, item discovery.CandidateItem, d transfer.Descriptor, saveRoot string) (transfer.Result, error)
}
