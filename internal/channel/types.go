// Package channel defines the outbound publishing channel and the inbound
// operator command stream.
package channel

import (
	"context"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=types.go Client

// Command is one inbound operator command such as "/status"
type Command struct {
	// Name is the command without its leading slash, lowercased
	Name string
	// Args is the text following the command
	Args     string
	SenderID int64
	ChatID   int64
}

// Client is the channel collaborator
type Client interface {
	// SendFile uploads the file at path to target with an optional caption
	SendFile(ctx context.Context, target int64, path, caption string) error

	// SendMessage posts a text message to target
	SendMessage(ctx context.Context, target int64, text string) error

	// SubscribeCommands streams commands sent by operator until ctx ends.
	// The returned channel is closed when the subscription stops.
	SubscribeCommands(ctx context.Context, operator int64) (<-chan Command, error)
}

// ParseCommand splits "/name@bot args" text into a Command. ok is false for
// text that is not a command.
func ParseCommand(text string) (cmd Command, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return Command{}, false
	}
	name, args, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}, true
}
