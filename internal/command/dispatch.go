// Package command serves operator commands arriving over the channel.
package command

import (
	"fmt"
	"strings"

	"github.com/seedpost/seedpost/internal/config"
	"github.com/seedpost/seedpost/internal/status"
)

// Env is everything a reply may render
type Env struct {
	View     status.View
	Settings []config.Setting
	// Triggered reports whether a /check was accepted by the orchestrator
	Triggered bool
}

// effects are the side effects a command may have
type effects interface {
	setEnabled(enabled bool)
	trigger() bool
}

type handler struct {
	// apply runs before the reply is rendered and may be nil
	apply func(e effects, env *Env)
	reply func(env Env) string
}

var table = map[string]handler{
	"start":  {reply: helpReply},
	"help":   {reply: helpReply},
	"status": {reply: statusReply},
	"stats":  {reply: statsReply},
	"pause": {
		apply: func(e effects, _ *Env) { e.setEnabled(false) },
		reply: func(Env) string { return "⏸️ Automatic uploads paused" },
	},
	"resume": {
		apply: func(e effects, _ *Env) { e.setEnabled(true) },
		reply: func(Env) string { return "▶️ Automatic uploads resumed" },
	},
	"check": {
		apply: func(e effects, env *Env) {
			if env.View.Enabled {
				env.Triggered = e.trigger()
			}
		},
		reply: checkReply,
	},
	"config": {reply: configReply},
}

func helpReply(Env) string {
	return "🤖 Seedpost Uploader Bot\n\n" +
		"Available commands:\n" +
		"/status - Show current status\n" +
		"/stats - Show statistics\n" +
		"/pause - Pause automatic uploads\n" +
		"/resume - Resume automatic uploads\n" +
		"/check - Force check for new torrents\n" +
		"/config - Show configuration"
}

func runningLabel(enabled bool) string {
	if enabled {
		return "🟢 Running"
	}
	return "🔴 Paused"
}

func statusReply(env Env) string {
	v := env.View
	return fmt.Sprintf("Status Report\n\n"+
		"Status: %s\n"+
		"Last Check: %s\n"+
		"Torrents Found: %d\n"+
		"Files Uploaded: %d\n"+
		"Errors: %d\n"+
		"Timed Out: %d",
		runningLabel(v.Enabled), v.LastScanString(),
		v.ItemsDiscovered, v.ItemsPublished, v.Errors, v.TransfersTimedOut)
}

func statsReply(env Env) string {
	v := env.View
	return fmt.Sprintf("📊 Statistics\n\n"+
		"Torrents Found: %d\n"+
		"Files Uploaded: %d\n"+
		"Errors: %d\n"+
		"Timed Out: %d\n"+
		"Last Check: %s",
		v.ItemsDiscovered, v.ItemsPublished, v.Errors, v.TransfersTimedOut, v.LastScanString())
}

func checkReply(env Env) string {
	switch {
	case !env.View.Enabled:
		return "⏸️ Automatic uploads are paused, use /resume first"
	case env.Triggered:
		return "🔍 Checking for new torrents"
	default:
		return "🔍 A check is already queued"
	}
}

func configReply(env Env) string {
	var b strings.Builder
	b.WriteString("⚙️ Configuration\n")
	for _, s := range env.Settings {
		fmt.Fprintf(&b, "\n%s: %s", s.Key, s.Value)
	}
	return b.String()
}
