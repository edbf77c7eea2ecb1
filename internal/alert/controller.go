package alert

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"carillon/internal/core"
)

const terminateGrace = 2 * time.Second

// Launcher starts playback processes.
type Launcher interface {
	Start(file, device string, loop bool) (*exec.Cmd, error)
	Fire(file, device string)
}

// Controller manages the looped alert siren. At most one alert process runs
// at a time; triggering a new one replaces the old.
type Controller struct {
	player Launcher
	mp3Dir string
	logger *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	filename string
	done     chan struct{}
}

// NewController creates an alert controller playing files from mp3Dir.
func NewController(player Launcher, mp3Dir string, logger *slog.Logger) *Controller {
	return &Controller{
		player: player,
		mp3Dir: mp3Dir,
		logger: logger.With("component", "alert"),
	}
}

// Trigger starts the named sound file as an alert, stopping any already
// running alert first. Returns core.ErrSoundNotFound when the file does not
// exist in the sound directory.
func (c *Controller) Trigger(filename, device string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	path := filepath.Join(c.mp3Dir, filepath.Base(filename))
	if _, err := os.Stat(path); err != nil {
		return core.ErrSoundNotFound
	}

	cmd, err := c.player.Start(path, device, false)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	c.cmd = cmd
	c.filename = filename
	c.done = done
	c.logger.Warn("Alert triggered", "file", filename, "pid", cmd.Process.Pid)
	return nil
}

// Stop terminates the running alert. Returns core.ErrAlertNotActive when no
// alert is running.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked()
	if c.cmd == nil {
		return core.ErrAlertNotActive
	}
	c.stopLocked()
	return nil
}

// End terminates any running alert and then plays the end-of-alert sound
// once, untracked. It succeeds even when no alert was active.
func (c *Controller) End(endSound, device string) {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()

	if endSound != "" {
		path := filepath.Join(c.mp3Dir, filepath.Base(endSound))
		if _, err := os.Stat(path); err != nil {
			c.logger.Error("End-of-alert sound missing", "file", endSound)
			return
		}
		c.player.Fire(path, device)
	}
	c.logger.Info("Alert ended", "end_sound", endSound)
}

// Status reports whether an alert is active and which file is playing. A
// child that exited on its own is reaped here.
func (c *Controller) Status() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked()
	if c.cmd == nil {
		return false, ""
	}
	return true, c.filename
}

// Shutdown kills any running alert immediately.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		c.cmd.Process.Kill()
		c.clearLocked()
	}
}

// reapLocked clears state for an alert process that already exited.
func (c *Controller) reapLocked() {
	if c.cmd == nil {
		return
	}
	select {
	case <-c.done:
		c.logger.Info("Alert process exited on its own", "file", c.filename)
		c.clearLocked()
	default:
	}
}

// stopLocked terminates the alert process, escalating to kill after the
// grace period. Callers hold c.mu.
func (c *Controller) stopLocked() {
	c.reapLocked()
	if c.cmd == nil {
		return
	}

	pid := c.cmd.Process.Pid
	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		c.cmd.Process.Kill()
	}

	select {
	case <-c.done:
		c.logger.Info("Alert stopped", "file", c.filename, "pid", pid)
	case <-time.After(terminateGrace):
		c.logger.Warn("Alert process did not terminate, killing", "pid", pid)
		c.cmd.Process.Kill()
		<-c.done
	}
	c.clearLocked()
}

func (c *Controller) clearLocked() {
	c.cmd = nil
	c.filename = ""
	c.done = nil
}
