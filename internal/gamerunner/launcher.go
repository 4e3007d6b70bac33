package gamerunner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os/exec"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrNoBinary = errors.New("game binary not configured")

// Instance is one running game.
type Instance interface {
	// Deliver sends a payload to the instance.
	Deliver(p StartPayload) error
	// Stop ends the instance; graceful asks it to finish on its own.
	Stop(graceful bool)
	// Reports is closed once the instance has exited.
	Reports() <-chan InstanceReport
	// Err is the exit error, valid after Reports is closed.
	Err() error
}

type Launcher interface {
	Launch(ctx context.Context, first StartPayload) (Instance, error)
}

// ProcessLauncher runs each game as a child process that speaks JSON lines
// on stdin and stdout.
type ProcessLauncher struct {
	Binary string
	Args   []string
}

func (l ProcessLauncher) Launch(ctx context.Context, first StartPayload) (Instance, error) {
	if l.Binary == "" {
		return nil, ErrNoBinary
	}
	cmd := exec.CommandContext(ctx, l.Binary, l.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = log.With().
		Str("instance_id", first.InstanceID).
		Uint64("game_id", uint64(first.GameID)).
		Logger()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{
		cmd:     cmd,
		stdin:   stdin,
		enc:     json.NewEncoder(stdin),
		reports: make(chan InstanceReport, 16),
	}
	go p.read(stdout)
	if err := p.Deliver(first); err != nil {
		p.Stop(false)
		return nil, err
	}
	return p, nil
}

type process struct {
	cmd   *exec.Cmd
	mu    sync.Mutex
	stdin io.WriteCloser
	enc   *json.Encoder
	shut  bool

	reports chan InstanceReport
	err     error
}

func (p *process) Deliver(payload StartPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shut {
		return io.ErrClosedPipe
	}
	return p.enc.Encode(payload)
}

func (p *process) Stop(graceful bool) {
	p.mu.Lock()
	if !p.shut {
		if graceful {
			_ = p.enc.Encode(StartPayload{Type: LineEnd})
		}
		p.shut = true
		_ = p.stdin.Close()
	}
	p.mu.Unlock()
	if !graceful && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

func (p *process) Reports() <-chan InstanceReport { return p.reports }

func (p *process) Err() error { return p.err }

func (p *process) read(stdout io.Reader) {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var r InstanceReport
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Type == "" {
			metricMalformedLines.Add(1)
			log.Debug().Str("line", sc.Text()).Msg("ignoring non-report line from game instance")
			continue
		}
		p.reports <- r
	}
	p.err = p.cmd.Wait()
	close(p.reports)
}
