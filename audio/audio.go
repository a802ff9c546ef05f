// Package audio provides alarm.Player implementations.
package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/logger"
)

// retryDelay is the pause before a failed looping command is started again
const retryDelay = time.Second

var (
	_ alarm.Player = (*Command)(nil)
	_ alarm.Player = (*Bell)(nil)
	_ alarm.Player = Silent{}
)

// Command plays sound files by running an external program such as paplay,
// afplay or ffplay. Args is a template: "{file}" expands to the sound's
// path under Dir, "{volume}" to 0-100 and "{gain}" to 0.0-1.0.
type Command struct {
	Args []string
	Dir  string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCommand creates a command player.
func NewCommand(args []string, dir string) *Command {
	return &Command{Args: args, Dir: dir}
}

// Unlock checks that the program can be found.
func (c *Command) Unlock() error {
	if len(c.Args) == 0 {
		return fmt.Errorf("no playback command configured")
	}
	if _, err := exec.LookPath(c.Args[0]); err != nil {
		return fmt.Errorf("playback command '%s' not found: %w", c.Args[0], err)
	}
	return nil
}

// Play starts the program and, when loop is set, restarts it every time it
// exits until Stop is called.
func (c *Command) Play(sound alarm.Sound, volume float64, loop bool) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("no playback command configured")
	}
	file := filepath.Join(c.Dir, sound.Asset)
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("sound '%s' unavailable: %w", sound.ID, err)
	}
	args := ExpandArgs(c.Args, file, volume)

	c.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	first := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := first.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start playback: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		cmd := first
		for {
			if err := cmd.Wait(); err != nil && ctx.Err() == nil {
				logger.Warnf("Playback of %s exited: %v", sound.ID, err)
				select {
				case <-ctx.Done():
				case <-time.After(retryDelay):
				}
			}
			if !loop || ctx.Err() != nil {
				return
			}
			cmd = exec.CommandContext(ctx, args[0], args[1:]...)
			if err := cmd.Start(); err != nil {
				logger.Errorf("Failed to restart playback: %v", err)
				return
			}
		}
	}()
	return nil
}

// Stop kills the running program and waits for the loop to end.
func (c *Command) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// ExpandArgs fills the placeholders of a command template.
func ExpandArgs(tmpl []string, file string, volume float64) []string {
	r := strings.NewReplacer(
		"{file}", file,
		"{volume}", strconv.Itoa(int(volume*100+0.5)),
		"{gain}", strconv.FormatFloat(volume, 'f', 2, 64),
	)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out
}

// Bell rings the terminal bell, once a second while looping.
type Bell struct {
	W        io.Writer
	Interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewBell creates a Bell writing to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{W: w, Interval: time.Second}
}

// Unlock implements alarm.Player.
func (b *Bell) Unlock() error {
	if b.W == nil {
		return fmt.Errorf("bell has no output")
	}
	return nil
}

// Play implements alarm.Player. Volume is ignored.
func (b *Bell) Play(_ alarm.Sound, _ float64, loop bool) error {
	b.Stop()
	if err := b.ring(); err != nil {
		return err
	}
	if !loop {
		return nil
	}

	stop, done := make(chan struct{}), make(chan struct{})
	b.mu.Lock()
	b.stop, b.done = stop, done
	b.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(b.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := b.ring(); err != nil {
					logger.Warnf("Bell failed: %v", err)
					return
				}
			}
		}
	}()
	return nil
}

// Stop implements alarm.Player.
func (b *Bell) Stop() error {
	b.mu.Lock()
	stop, done := b.stop, b.done
	b.stop, b.done = nil, nil
	b.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

func (b *Bell) ring() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.W == nil {
		return fmt.Errorf("bell has no output")
	}
	_, err := io.WriteString(b.W, "\a")
	return err
}

// Silent discards all playback.
type Silent struct{}

func (Silent) Unlock() error { return nil }
func (Silent) Play(alarm.Sound, float64, bool) error { return nil }
func (Silent) Stop() error { return nil }
