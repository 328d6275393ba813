package alert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoPlayer is returned when no player command is configured.
var ErrNoPlayer = errors.New("no alert player configured")

// Player plays an audio file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// CommandPlayer plays audio by running an external command with the file
// path appended as the last argument, e.g. "ffplay -nodisp -autoexit".
type CommandPlayer struct {
	name string
	args []string
}

// NewCommandPlayer parses a whitespace separated command line.
func NewCommandPlayer(command string) (*CommandPlayer, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrNoPlayer
	}
	return &CommandPlayer{name: fields[0], args: fields[1:]}, nil
}

// Play blocks until the command exits.
func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("alert sound unavailable: %w", err)
	}

	args := append(append([]string{}, p.args...), path)
	cmd := exec.CommandContext(ctx, p.name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", p.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
