package engine

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type processConfig struct {
	Bin       string
	Host      string
	Model     string
	Projector string
	CtxSize   int
	NGL       int
	Threads   int
	ExtraArgs []string
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// args builds the llama-server command line.
func (c processConfig) args(port int) []string {
	args := []string{
		"-m", c.Model,
		"--host", c.Host,
		"--port", strconv.Itoa(port),
	}
	if c.Projector != "" {
		args = append(args, "--mmproj", c.Projector)
	}
	if c.CtxSize > 0 {
		args = append(args, "-c", strconv.Itoa(c.CtxSize))
	}
	if c.NGL != 0 {
		args = append(args, "-ngl", strconv.Itoa(c.NGL))
	}
	if c.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(c.Threads))
	}
	return append(args, c.ExtraArgs...)
}

// process is a spawned llama-server.
type process struct {
	cmd     *exec.Cmd
	baseURL string
	pid     int
	log     zerolog.Logger
	exited  chan struct{}
	waitErr error

	stopOnce sync.Once
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

// startProcess launches llama-server on a free port and waits until healthy
// reports true, the process exits, ctx ends or cfg.Timeout passes.
func startProcess(ctx context.Context, cfg processConfig, healthy func(context.Context, string) bool) (*process, error) {
	port, err := pickFreePort(cfg.Host)
	if err != nil {
		return nil, err
	}
	baseURL := "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	cmd := exec.Command(cfg.Bin, cfg.args(port)...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	p := &process{cmd: cmd, baseURL: baseURL, pid: cmd.Process.Pid, log: cfg.Logger, exited: make(chan struct{})}
	p.log.Info().Str("model", cfg.Model).Int("pid", p.pid).Str("url", baseURL).Msg("llama-server started")

	// Early-exit watcher: surfaces a crash before readiness.
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	deadline := time.Now().Add(cfg.Timeout)
	for {
		select {
		case <-p.exited:
			p.log.Error().Int("pid", p.pid).AnErr("err", p.waitErr).Msg("llama-server exited before ready")
			if p.waitErr != nil {
				return nil, fmt.Errorf("llama-server exited early: %v; stderr tail: %s", p.waitErr, stderr.String())
			}
			return nil, fmt.Errorf("llama-server exited before ready: %s; stderr tail: %s", baseURL, stderr.String())
		case <-ctx.Done():
			_ = p.stop()
			return nil, ctx.Err()
		default:
		}
		if time.Now().After(deadline) {
			p.log.Error().Int("pid", p.pid).Msg("llama-server readiness timeout")
			_ = p.stop()
			return nil, fmt.Errorf("llama-server not ready in time: %s", baseURL)
		}
		if healthy(ctx, baseURL) {
			p.log.Info().Int("pid", p.pid).Str("url", baseURL).Msg("llama-server ready")
			return p, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// stop sends SIGTERM and kills the process if it is still alive after 2s.
func (p *process) stop() error {
	p.stopOnce.Do(func() {
		select {
		case <-p.exited:
			return
		default:
		}
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-p.exited:
		case <-time.After(2 * time.Second):
			_ = p.cmd.Process.Kill()
			<-p.exited
		}
		p.log.Info().Int("pid", p.pid).Msg("llama-server stopped")
	})
	return nil
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}
