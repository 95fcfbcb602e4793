// Package host spawns the native messaging host and speaks the framed stdio
// protocol with it.
package host

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	"github.com/five82/kdebridge/internal/protocol"
	"github.com/five82/kdebridge/internal/session"
)

var (
	// ErrQueueFull is returned by Send when the writer has fallen behind.
	ErrQueueFull = errors.New("host: outbound queue full")
	// ErrClosed is returned by Send once the process has exited or been closed.
	ErrClosed = errors.New("host: channel closed")
)

const defaultQueueSize = 64

// Options configures how the host is started.
type Options struct {
	// Path is the host executable.
	Path string
	// Args are passed to the host. Browsers pass the caller's origin.
	Args []string
	// Stderr receives the host's diagnostic output. Nil discards it.
	Stderr io.Writer
	// QueueSize bounds outbound messages waiting for the writer.
	QueueSize int
	Logger    *log.Logger
}

// Dialer starts one host process per Dial.
type Dialer struct {
	opts Options
}

var _ session.Dialer = (*Dialer)(nil)

// NewDialer returns a dialer for the host described by opts.
func NewDialer(opts Options) *Dialer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Dialer{opts: opts}
}

// Dial starts the host. Start failures are reported to h as a disconnect.
func (d *Dialer) Dial(h session.Handler) session.Channel {
	p := &Process{
		out:    make(chan protocol.Message, d.opts.QueueSize),
		done:   make(chan struct{}),
		logger: d.opts.Logger,
	}
	if err := p.start(d.opts, h); err != nil {
		p.markClosed()
		go h.HandleDisconnect(err)
	}
	return p
}

// Process is a running host.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    chan protocol.Message
	done   chan struct{}
	logger *log.Logger

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

var _ session.Channel = (*Process)(nil)

// Send queues msg for the writer goroutine.
func (p *Process) Send(msg protocol.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.out <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the host. The disconnect that follows is still delivered.
func (p *Process) Close() error {
	p.markClosed()
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	_ = p.stdin.Close()
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill host: %w", err)
	}
	return nil
}


func (p *Process) start(opts Options, h session.Handler) error {
	if opts.Path == "" {
		return errors.New("host: no executable configured")
	}

	cmd := exec.Command(opts.Path, opts.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("host: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return fmt.Errorf("host: stdout pipe: %w", err)
	}
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return fmt.Errorf("host: start %s: %w", opts.Path, err)
	}
	p.cmd = cmd
	p.stdin = stdin
	p.logger.Printf("[host] started %s (pid %d)", opts.Path, cmd.Process.Pid)

	go p.writePump()
	go p.run(stdout, h)
	return nil
}

func (p *Process) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.once.Do(func() { close(p.done) })
}

func (p *Process) writePump() {
	enc := protocol.NewEncoder(p.stdin)
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.out:
			if err := enc.Encode(msg); err != nil {
				p.logger.Printf("[host] write %s: %v", msg.Type, err)
				_ = p.cmd.Process.Kill()
				return
			}
		}
	}
}

// run reads frames until stdout ends, then reaps the process and reports the
// disconnect exactly once.
func (p *Process) run(stdout io.Reader, h session.Handler) {
	readErr := p.readPump(stdout, h)
	if readErr != nil {
		_ = p.cmd.Process.Kill()
	}
	waitErr := p.cmd.Wait()
	p.markClosed()

	err := readErr
	if err == nil {
		err = waitErr
	}
	if err == nil {
		err = io.EOF
	}
	h.HandleDisconnect(err)
}

func (p *Process) readPump(stdout io.Reader, h session.Handler) error {
	dec := protocol.NewDecoder(stdout)
	for {
		var msg protocol.Message
		err := dec.Decode(&msg)
		if err == nil {
			h.HandleMessage(msg)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		var syntaxErr *protocol.SyntaxError
		if errors.As(err, &syntaxErr) {
			p.logger.Printf("[host] skip frame: %v", err)
			continue
		}
		return fmt.Errorf("host: read: %w", err)
	}
}
