package command

import (
	"context"
	"log/slog"

	"github.com/seedpost/seedpost/internal/channel"
	"github.com/seedpost/seedpost/internal/config"
	"github.com/seedpost/seedpost/internal/status"
)

// Triggerer asks the orchestrator for an immediate cycle. Trigger returns
// false when a cycle request is already pending.
type Triggerer interface {
	Trigger() bool
}

// Recorder observes handled commands
type Recorder interface {
	RecordCommand(ctx context.Context, name string)
}

// Plane answers operator commands with exactly one reply each
type Plane struct {
	client    channel.Client
	state     *status.RunState
	triggerer Triggerer
	settings  []config.Setting
	operator  int64
	recorder  Recorder
}

// Option configures a Plane
type Option func(*Plane)

// WithRecorder reports handled commands to r
func WithRecorder(r Recorder) Option {
	return func(p *Plane) {
		p.recorder = r
	}
}

// NewPlane creates a command plane serving operator
func NewPlane(
	client channel.Client,
	state *status.RunState,
	trigger Triggerer,
	settings []config.Setting,
	operator int64,
	opts ...Option,
) *Plane {
	p := &Plane{
		client:    client,
		state:     state,
		triggerer: trigger,
		settings:  settings,
		operator:  operator,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run subscribes to operator commands and replies until ctx ends
func (p *Plane) Run(ctx context.Context) error {
	cmds, err := p.client.SubscribeCommands(ctx, p.operator)
	if err != nil {
		return err
	}
	slog.Info("Command plane started", "operator", p.operator)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Command plane stopped")
			return nil
		case cmd, ok := <-cmds:
			if !ok {
				slog.Info("Command stream closed")
				return nil
			}
			p.serve(ctx, cmd)
		}
	}
}

func (p *Plane) serve(ctx context.Context, cmd channel.Command) {
	reply, ok := p.Handle(cmd)
	if !ok {
		return
	}
	if p.recorder != nil {
		p.recorder.RecordCommand(ctx, cmd.Name)
	}

	chat := cmd.ChatID
	if chat == 0 {
		chat = p.operator
	}
	if err := p.client.SendMessage(ctx, chat, reply); err != nil {
		slog.Warn("Failed to reply to command", "command", cmd.Name, "error", err)
	}
}

// Handle applies cmd and renders its reply. ok is false for commands from
// anyone but the operator and for unknown commands; neither gets a reply.
func (p *Plane) Handle(cmd channel.Command) (reply string, ok bool) {
	if cmd.SenderID != p.operator {
		slog.Debug("Ignoring command from unauthorized sender", "sender", cmd.SenderID)
		return "", false
	}
	h, ok := table[cmd.Name]
	if !ok {
		slog.Debug("Ignoring unknown command", "command", cmd.Name)
		return "", false
	}

	env := Env{View: p.state.Snapshot(), Settings: p.settings}
	if h.apply != nil {
		h.apply(p, &env)
		env.View = p.state.Snapshot()
	}
	slog.Info("Command handled", "command", cmd.Name)
	return h.reply(env), true
}

func (p *Plane) setEnabled(enabled bool) {
	if prev := p.state.SetEnabled(enabled); prev != enabled {
		slog.Info("Run state changed", "enabled", enabled)
	}
}

func (p *Plane) trigger() bool {
	if p.triggerer == nil {
		return false
	}
	return p.triggerer.Trigger()
}
