package app

import (
	"context"
	"io"

	"github.com/seedpost/seedpost/internal/channel"
	"github.com/seedpost/seedpost/internal/command"
	"github.com/seedpost/seedpost/internal/ledger"
	"github.com/seedpost/seedpost/internal/orchestrator"
	"github.com/seedpost/seedpost/internal/publish"
	"github.com/seedpost/seedpost/internal/status"
	"github.com/seedpost/seedpost/internal/telemetry"
	"github.com/seedpost/seedpost/internal/transfer"
)

// Engine is the transfer engine the app drives. It also resolves infohashes
// for the pre-transfer ledger check.
type Engine interface {
	transfer.Engine
	orchestrator.Identifier
	io.Closer
}

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Orchestrator runs the scan, transfer and publish loop
	Orchestrator orchestrator.Orchestrator

	// Plane answers operator commands
	Plane *command.Plane

	// State is shared by the orchestrator, the command plane and the API
	State *status.RunState

	Ledger  *ledger.FileLedger
	Channel channel.Client
	Engine  Engine

	// Telemetry is nil when the caller owns the providers
	Telemetry *telemetry.Telemetry
}

// recordingGate reports the ledger size after every publish
type recordingGate struct {
	gate    orchestrator.Publisher
	ledger  ledger.Ledger
	metrics *telemetry.PipelineMetrics
}

func (g *recordingGate) Publish(ctx context.Context, a publish.Artifact, target int64, caption string) publish.Outcome {
	out := g.gate.Publish(ctx, a, target, caption)
	if out.Kind == publish.KindPublished {
		g.metrics.RecordLedgerSize(ctx, len(g.ledger.Records()))
	}
	return out
}
