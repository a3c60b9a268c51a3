package machine

import (
	"bufio"
	"cmp"
	"context"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// TailLines is how many trailing output lines an Outcome keeps.
const TailLines = 20

const maxLineSize = 1 << 20

// Outcome is how a build script ended.
type Outcome struct {
	ExitCode int
	// Tail holds the last TailLines lines of output, oldest first.
	Tail []string
}

// Success reports a zero exit code.
func (o Outcome) Success() bool { return o.ExitCode == 0 }

// Execution is a running build script.
type Execution struct {
	sandbox *Sandbox
	ctx     context.Context
	lines   chan string
	pump    errgroup.Group
	tail    *tail

	iterated atomic.Bool

	waitOnce sync.Once
	outcome  Outcome
	err      error
}

// newExecution pumps out until it ends or ctx is done. Cancelling ctx
// closes out, which ends Lines even when the runtime keeps the stream open
// until the container exits.
func newExecution(ctx context.Context, s *Sandbox, out io.ReadCloser) *Execution {
	e := &Execution{
		sandbox: s,
		ctx:     ctx,
		lines:   make(chan string, 64),
		tail:    newTail(TailLines),
	}
	stop := context.AfterFunc(ctx, func() { out.Close() })
	e.pump.Go(func() error {
		defer close(e.lines)
		defer out.Close()
		defer stop()

		sc := bufio.NewScanner(out)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			line := sc.Text()
			e.tail.add(line)
			e.lines <- line
		}
		if ctx.Err() != nil {
			return nil
		}
		return sc.Err()
	})
	return e
}

// Lines yields output lines as they arrive. The sequence is single-pass:
// only the first call yields anything. Lines not consumed before Wait are
// discarded, though they still count towards the Outcome tail. The sequence
// ends early when the Launch context is done.
func (e *Execution) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !e.iterated.CompareAndSwap(false, true) {
			return
		}
		for line := range e.lines {
			if !yield(line) {
				return
			}
		}
	}
}

// Wait drains unread output, waits for the script to exit and records the
// result on the sandbox. A non-zero exit is reported in the Outcome, not as
// an error; errors are *SandboxError. Repeated calls return the first
// result.
func (e *Execution) Wait(ctx context.Context) (Outcome, error) {
	e.waitOnce.Do(func() {
		e.outcome, e.err = e.wait(ctx)
	})
	return e.outcome, e.err
}

func (e *Execution) wait(ctx context.Context) (Outcome, error) {
	s := e.sandbox
	e.iterated.Store(true)

drain:
	for {
		select {
		case _, ok := <-e.lines:
			if !ok {
				break drain
			}
		case <-ctx.Done():
			// keep the pump unblocked until teardown ends the stream
			go func() {
				for range e.lines {
				}
			}()
			s.transition(StateFailed)
			return Outcome{ExitCode: -1, Tail: e.tail.lines()}, &SandboxError{Op: "wait", Image: s.image, Err: ctx.Err()}
		}
	}
	if err := e.pump.Wait(); err != nil {
		s.logger.Warn("reading sandbox output", "error", err)
	}
	if err := cmp.Or(ctx.Err(), e.ctx.Err()); err != nil {
		s.transition(StateFailed)
		return Outcome{ExitCode: -1, Tail: e.tail.lines()}, &SandboxError{Op: "wait", Image: s.image, Err: err}
	}

	code, err := s.runtime.Wait(ctx, s.Name())
	if err != nil {
		s.transition(StateFailed)
		return Outcome{ExitCode: -1, Tail: e.tail.lines()}, &SandboxError{Op: "wait", Image: s.image, Err: err}
	}

	out := Outcome{ExitCode: code, Tail: e.tail.lines()}
	if out.Success() {
		s.transition(StateSucceeded)
	} else {
		s.transition(StateFailed)
	}
	s.logger.Info("build script finished", "container", s.Name(), "exit_code", code)
	return out, nil
}

// tail is a fixed-size ring of the most recent lines.
type tail struct {
	mu   sync.Mutex
	buf  []string
	next int
	full bool
}

func newTail(n int) *tail {
	return &tail{buf: make([]string, n)}
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf[t.next] = line
	t.next = (t.next + 1) % len(t.buf)
	if t.next == 0 {
		t.full = true
	}
}

func (t *tail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]string(nil), t.buf[:t.next]...)
	}
	out := make([]string, 0, len(t.buf))
	out = append(out, t.buf[t.next:]...)
	return append(out, t.buf[:t.next]...)
}
