package upstream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const stderrTail = 4 << 10

// maxLineSize bounds a single NDJSON line from the CLI.
var maxLineSize = 16 << 20

type item struct {
	msg Message
	err error
}

type processStream struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	items  chan item
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	stderr *tailBuffer
}

func startProcess(ctx context.Context, a *Adapter, req Request) (*processStream, error) {
	if req.WorkDir != "" {
		if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
			return nil, &ProcessError{Message: "failed to create work dir", Cause: err}
		}
	}

	pctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(pctx, a.cfg.CLIPath, a.BuildArgs(req)...)
	cmd.Env = a.Environ()
	cmd.Dir = req.WorkDir
	setProcAttr(cmd)
	cmd.Cancel = func() error { return killGroup(cmd.Process) }
	cmd.WaitDelay = 2 * time.Second

	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &ProcessError{Message: "failed to create stdout pipe", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) {
			return nil, &CLINotFoundError{Path: a.cfg.CLIPath, Cause: err}
		}
		return nil, &ProcessError{Message: "failed to start CLI process", Cause: err}
	}

	s := &processStream{
		cmd:    cmd,
		cancel: cancel,
		items:  make(chan item),
		done:   make(chan struct{}),
		stderr: stderr,
	}
	s.wg.Add(1)
	go s.read(stdout, NewDecoder(a.cfg.PartialMessages))
	return s, nil
}

// read owns stdout and the process. It exits once the process is reaped.
func (s *processStream) read(stdout io.Reader, dec *Decoder) {
	defer s.wg.Done()
	defer close(s.items)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	finished := false
	for scanner.Scan() {
		msgs, err := dec.Decode(scanner.Bytes())
		if err != nil {
			if !s.send(item{err: err}) {
				s.drain(stdout)
				return
			}
			continue
		}
		for _, m := range msgs {
			if _, ok := m.(EndOfTurn); ok {
				finished = true
			}
			if !s.send(item{msg: m}) {
				s.drain(stdout)
				return
			}
		}
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		// The rest of stdout is unreadable; stop the CLI instead of waiting on a full pipe.
		s.cancel()
	}
	waitErr := s.cmd.Wait()

	switch {
	case scanErr != nil:
		s.send(item{err: &ProcessError{Message: "failed to read stdout", Cause: scanErr}})
	case waitErr != nil && !finished:
		s.send(item{err: &ProcessError{Message: "CLI exited before end of turn", Stderr: s.stderr.String(), Cause: waitErr}})
	}
}

func (s *processStream) drain(stdout io.Reader) {
	_, _ = io.Copy(io.Discard, stdout)
	_ = s.cmd.Wait()
}

func (s *processStream) send(it item) bool {
	select {
	case s.items <- it:
		return true
	case <-s.done:
		return false
	}
}

func (s *processStream) Next(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	case it, ok := <-s.items:
		if !ok {
			return nil, io.EOF
		}
		return it.msg, it.err
	}
}

// Close kills the process group if it is still running and waits for the reader.
func (s *processStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
	s.wg.Wait()
	return nil
}

type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
