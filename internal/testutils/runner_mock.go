package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/srg/btctl/internal/runner"
	"github.com/stretchr/testify/mock"
)

// MockRunner is a testify mock of runner.Runner.
//
//	m := &testutils.MockRunner{}
//	m.On("Run", mock.Anything, "/bin/blueutil", []string{"--connect", "AA"}).
//	    Return(&runner.Result{}, nil)
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) (*runner.Result, error) {
	ret := m.Called(ctx, name, args)
	res, _ := ret.Get(0).(*runner.Result)
	return res, ret.Error(1)
}

// ScriptedResponse is the canned outcome of one command line.
type ScriptedResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	Delay    time.Duration
}

// ScriptedRunner answers commands from a table keyed by the full command line.
// Unscripted commands fail. It is safe for concurrent use and records every call.
type ScriptedRunner struct {
	mu        sync.Mutex
	responses map[string][]ScriptedResponse
	calls     []string
}

// NewScriptedRunner creates an empty ScriptedRunner.
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{responses: make(map[string][]ScriptedResponse)}
}

// On queues a response for cmdline. Queued responses are consumed in order;
// the last one is repeated once the queue is down to it.
func (r *ScriptedRunner) On(cmdline string, resp ScriptedResponse) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[cmdline] = append(r.responses[cmdline], resp)
	return r
}

// Run implements runner.Runner.
func (r *ScriptedRunner) Run(ctx context.Context, name string, args ...string) (*runner.Result, error) {
	cmdline := runner.CommandLine(name, args...)

	r.mu.Lock()
	r.calls = append(r.calls, cmdline)
	queue, ok := r.responses[cmdline]
	var resp ScriptedResponse
	if ok {
		resp = queue[0]
		if len(queue) > 1 {
			r.responses[cmdline] = queue[1:]
		}
	}
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unexpected command: %s", cmdline)
	}

	if resp.Delay > 0 {
		select {
		case <-ctx.Done():
			return &runner.Result{}, ctx.Err()
		case <-time.After(resp.Delay):
		}
	}
	if resp.Err != nil {
		return &runner.Result{}, resp.Err
	}
	return &runner.Result{
		Stdout:   []byte(resp.Stdout),
		Stderr:   []byte(resp.Stderr),
		ExitCode: resp.ExitCode,
	}, nil
}

// Calls returns every command line run so far.
func (r *ScriptedRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// CallCount returns how many times cmdline was run.
func (r *ScriptedRunner) CallCount(cmdline string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == cmdline {
			n++
		}
	}
	return n
}
