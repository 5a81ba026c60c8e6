package device

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// CommandPlayer pipes each clip into an external player's stdin, e.g.
// "ffplay -nodisp -autoexit -" or "aplay -".
type CommandPlayer struct {
	Name string
	Args []string
}

func (p *CommandPlayer) Play(ctx context.Context, clip []byte) error {
	cmd := exec.CommandContext(ctx, p.Name, p.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("player: start %s: %w", p.Name, err)
	}
	_, werr := stdin.Write(clip)
	_ = stdin.Close()
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("player: %s: %w", p.Name, err)
	}
	if werr != nil {
		return fmt.Errorf("player: write: %w", werr)
	}
	return nil
}

// DirPlayer "plays" clips by saving them as reply-001.<ext>, reply-002.<ext>...
type DirPlayer struct {
	Dir string
	Ext string

	mu sync.Mutex
	n  int
}

func (p *DirPlayer) Play(ctx context.Context, clip []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("player: %w", err)
	}
	p.mu.Lock()
	p.n++
	n := p.n
	p.mu.Unlock()
	ext := p.Ext
	if ext == "" {
		ext = "wav"
	}
	path := filepath.Join(p.Dir, fmt.Sprintf("reply-%03d.%s", n, ext))
	if err := os.WriteFile(path, clip, 0o644); err != nil {
		return fmt.Errorf("player: %w", err)
	}
	return nil
}

// Played returns how many clips were written.
func (p *DirPlayer) Played() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
