package machine_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/androiddrew/vdist/src/machine"
	"github.com/androiddrew/vdist/src/machine/machinetest"
)

const image = "dantesignal31/vdist:ubuntu-lts"

func TestLaunchSuccess(t *testing.T) {
	rt := machinetest.New(image)
	rt.Output = []string{"step 1", "step 2", "done"}
	dir := t.TempDir()

	s := machine.New(rt, image)
	exec, err := s.Launch(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, machine.StateRunning, s.State())

	var got []string
	for line := range exec.Lines() {
		got = append(got, line)
	}
	assert.Equal(t, rt.Output, got)

	out, err := exec.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Success())
	assert.Equal(t, rt.Output, out.Tail)
	assert.Equal(t, machine.StateSucceeded, s.State())

	spec, ok := rt.Spec(s.Name())
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(spec.Name, "vdist-"))
	assert.Equal(t, dir, spec.BuildDir)
	assert.Equal(t, []string{machine.ScriptPath}, spec.Command)
	assert.Equal(t, image, spec.Image)
	assert.Zero(t, rt.Count(machinetest.OpPull))

	s.Shutdown(context.Background())
	s.Shutdown(context.Background())
	assert.Equal(t, machine.StateTornDown, s.State())
	assert.Equal(t, 1, rt.Count(machinetest.OpStop))
	assert.Equal(t, 1, rt.Count(machinetest.OpRemove))
}

func TestLaunchPullsMissingImage(t *testing.T) {
	rt := machinetest.New()
	s := machine.New(rt, image)

	exec, err := s.Launch(context.Background(), t.TempDir())
	require.NoError(t, err)
	_, err = exec.Wait(context.Background())
	require.NoError(t, err)
	s.Shutdown(context.Background())

	assert.Equal(t, []string{
		machinetest.OpImageExists,
		machinetest.OpPull,
		machinetest.OpCreate,
		machinetest.OpStart,
		machinetest.OpWait,
		machinetest.OpStop,
		machinetest.OpRemove,
	}, rt.Calls())
}

func TestLaunchFailureTearsDownOnce(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		failOn   string
		op       string
		removals int
	}{
		{machinetest.OpImageExists, "inspect image", 0},
		{machinetest.OpPull, "pull image", 0},
		{machinetest.OpCreate, "create container", 1},
		{machinetest.OpStart, "start container", 1},
	}
	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			rt := machinetest.New()
			rt.FailOn[tt.failOn] = boom
			s := machine.New(rt, image)

			exec, err := s.Launch(context.Background(), t.TempDir())
			require.Error(t, err)
			assert.Nil(t, exec)
			assert.ErrorIs(t, err, boom)

			var sbErr *machine.SandboxError
			require.ErrorAs(t, err, &sbErr)
			assert.Equal(t, tt.op, sbErr.Op)
			assert.Equal(t, image, sbErr.Image)

			assert.Equal(t, machine.StateTornDown, s.State())
			s.Shutdown(context.Background())
			s.Shutdown(context.Background())
			assert.Equal(t, tt.removals, rt.Count(machinetest.OpRemove))
			assert.Equal(t, tt.removals, rt.Count(machinetest.OpStop))
		})
	}
}

func TestScriptFailure(t *testing.T) {
	rt := machinetest.New(image)
	rt.ExitCode = 2
	for i := range 30 {
		rt.Output = append(rt.Output, fmt.Sprintf("line %d", i))
	}
	s := machine.New(rt, image)

	exec, err := s.Launch(context.Background(), t.TempDir())
	require.NoError(t, err)

	out, err := exec.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Success())
	assert.Equal(t, 2, out.ExitCode)
	require.Len(t, out.Tail, machine.TailLines)
	assert.Equal(t, "line 10", out.Tail[0])
	assert.Equal(t, "line 29", out.Tail[len(out.Tail)-1])
	assert.Equal(t, machine.StateFailed, s.State())

	s.Shutdown(context.Background())
	assert.Equal(t, 1, rt.Count(machinetest.OpRemove))
}

func TestWaitErrorIsSandboxError(t *testing.T) {
	rt := machinetest.New(image)
	rt.FailOn[machinetest.OpWait] = errors.New("daemon gone")
	s := machine.New(rt, image)

	exec, err := s.Launch(context.Background(), t.TempDir())
	require.NoError(t, err)

	_, err = exec.Wait(context.Background())
	var sbErr *machine.SandboxError
	require.ErrorAs(t, err, &sbErr)
	assert.Equal(t, "wait", sbErr.Op)
	assert.Equal(t, machine.StateFailed, s.State())
}

func TestLinesIsSinglePass(t *testing.T) {
	rt := machinetest.New(image)
	rt.Output = []string{"a", "b", "c"}
	s := machine.New(rt, image)
	defer s.Shutdown(context.Background())

	exec, err := s.Launch(context.Background(), t.TempDir())
	require.NoError(t, err)

	var first []string
	for line := range exec.Lines() {
		first = append(first, line)
		if line == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, first)
	assert.Empty(t, slices.Collect(exec.Lines()))

	out, err := exec.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, out.Tail)
}

func TestWaitWithoutReadingLines(t *testing.T) {
	rt := machinetest.New(image)
	for i := range 500 {
		rt.Output = append(rt.Output, fmt.Sprintf("noise %d", i))
	}
	s := machine.New(rt, image)
	defer s.Shutdown(context.Background())

	exec, err := s.Launch(context.Background(), t.TempDir())
	require.NoError(t, err)

	out, err := exec.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "noise 499", out.Tail[len(out.Tail)-1])
	assert.Empty(t, slices.Collect(exec.Lines()))

	again, err := exec.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestSecondLaunchRejected(t *testing.T) {
	rt := machinetest.New(image)
	s := machine.New(rt, image)
	defer s.Shutdown(context.Background())

	exec, err := s.Launch(context.Background(), t.TempDir())
	require.NoError(t, err)
	_, err = exec.Wait(context.Background())
	require.NoError(t, err)

	_, err = s.Launch(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, machine.ErrAlreadyLaunched)
	assert.Equal(t, 1, rt.Count(machinetest.OpCreate))
}

func TestShutdownBeforeLaunch(t *testing.T) {
	rt := machinetest.New(image)
	s := machine.New(rt, image)
	s.Shutdown(context.Background())

	assert.Equal(t, machine.StateTornDown, s.State())
	assert.Empty(t, rt.Calls())

	_, err := s.Launch(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, machine.ErrAlreadyLaunched)
}

func TestTeardownUsesLiveContext(t *testing.T) {
	rt := machinetest.New(image)
	s := machine.New(rt, image)
	_, err := s.Launch(context.Background(), t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Shutdown(ctx)
	assert.Equal(t, 1, rt.Count(machinetest.OpRemove))
}

func TestCancelWhileStreaming(t *testing.T) {
	rt := machinetest.New(image)
	rt.Output = []string{"compiling python"}
	rt.Hold = true
	s := machine.New(rt, image)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec, err := s.Launch(ctx, t.TempDir())
	require.NoError(t, err)

	done := make(chan []string)
	go func() {
		var got []string
		for line := range exec.Lines() {
			got = append(got, line)
			if line == "compiling python" {
				cancel()
			}
		}
		done <- got
	}()

	select {
	case got := <-done:
		assert.Equal(t, []string{"compiling python"}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("Lines did not end after cancel")
	}

	out, err := exec.Wait(ctx)
	var sbErr *machine.SandboxError
	require.ErrorAs(t, err, &sbErr)
	assert.Equal(t, "wait", sbErr.Op)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, -1, out.ExitCode)
	assert.Equal(t, machine.StateFailed, s.State())

	s.Shutdown(ctx)
	assert.Equal(t, machine.StateTornDown, s.State())
	assert.Equal(t, 1, rt.Count(machinetest.OpStop))
	assert.Equal(t, 1, rt.Count(machinetest.OpRemove))
}
