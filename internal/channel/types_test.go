package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text   string
		want   Command
		wantOK bool
	}{
		{"/status", Command{Name: "status"}, true},
		{"  /Pause  ", Command{Name: "pause"}, true},
		{"/check now please", Command{Name: "check", Args: "now please"}, true},
		{"/stats@seedpost_bot", Command{Name: "stats"}, true},
		{"status", Command{}, false},
		{"/", Command{}, false},
		{"/@bot", Command{}, false},
		{"", Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseCommand(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
