package audio

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Player launches sound playback in a child process running this same binary
// in --play-sound mode. A crash in the audio layer then cannot take the
// scheduler down, and an alert siren can be stopped by killing the child.
type Player struct {
	execPath string
	logger   *slog.Logger
}

// NewPlayer resolves the current executable path once.
func NewPlayer(logger *slog.Logger) (*Player, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable path: %w", err)
	}
	return &Player{execPath: path, logger: logger.With("component", "audio")}, nil
}

// Start launches playback of file and returns the running command so the
// caller can track or kill it. The device name is passed through to the
// child; loop makes the child repeat the file until killed.
func (p *Player) Start(file, device string, loop bool) (*exec.Cmd, error) {
	args := []string{"--play-sound", file}
	if device != "" {
		args = append(args, "--device", device)
	}
	if loop {
		args = append(args, "--loop")
	}

	cmd := exec.Command(p.execPath, args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start playback process: %w", err)
	}

	p.logger.Debug("Playback process started", "file", file, "pid", cmd.Process.Pid, "loop", loop)
	return cmd, nil
}

// Fire starts playback without tracking the process. The child is reaped on
// a goroutine; failures are logged and otherwise ignored.
func (p *Player) Fire(file, device string) {
	cmd, err := p.Start(file, device, false)
	if err != nil {
		p.logger.Error("Could not start playback", "file", file, "error", err)
		return
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			p.logger.Error("Playback process failed", "file", file, "error", err)
		}
	}()
}
