package timer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
)

const testTick = 5 * time.Millisecond

// pushRecorder records fire-and-forget commands.
type pushRecorder struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (p *pushRecorder) Execute(_ context.Context, line string, _ bool) (*protocol.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
	return nil, p.err
}

func (p *pushRecorder) count(substr string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, l := range p.lines {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T, cmd command.Commander, f FollowUp) *Manager {
	t.Helper()
	if cmd == nil {
		cmd = &pushRecorder{}
	}
	m := NewManager(cmd, f, testTick, zaptest.NewLogger(t))
	t.Cleanup(m.Shutdown)
	return m
}

func nopFollowUp() FollowUp {
	return FollowUpFunc(func(context.Context, string) error { return nil })
}

func TestStart_Validation(t *testing.T) {
	m := newTestManager(t, nil, nopFollowUp())
	assert.ErrorIs(t, m.Start("steve", 0, ModeOnce), ErrInvalidDuration)
	assert.ErrorIs(t, m.Start("steve", -3, ModeOnce), ErrInvalidDuration)
	assert.ErrorIs(t, m.Start("steve", 5, Mode("forever")), ErrInvalidMode)
	assert.False(t, m.Status("steve").Running)
}

func TestStart_AlreadyRunningLeavesRemainingUntouched(t *testing.T) {
	cmd := &pushRecorder{}
	m := NewManager(cmd, nopFollowUp(), time.Hour, zaptest.NewLogger(t))
	t.Cleanup(m.Shutdown)

	require.NoError(t, m.Start("steve", 60, ModeLoop))
	before := m.Status("steve")

	err := m.Start("steve", 5, ModeOnce)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	after := m.Status("steve")
	assert.Equal(t, before, after)
	assert.Equal(t, Status{Running: true, Remaining: 60, Initial: 60, Mode: ModeLoop}, after)
}

func TestStart_AlreadyRunningCheckedFirst(t *testing.T) {
	m := NewManager(&pushRecorder{}, nopFollowUp(), time.Hour, zaptest.NewLogger(t))
	t.Cleanup(m.Shutdown)
	require.NoError(t, m.Start("steve", 60, ModeOnce))
	assert.ErrorIs(t, m.Start("steve", -1, Mode("bogus")), ErrAlreadyRunning)
}

func TestStop_NotRunning(t *testing.T) {
	m := newTestManager(t, nil, nopFollowUp())
	assert.ErrorIs(t, m.Stop("steve"), ErrNotRunning)
}

func TestStop_TransitionsToIdleImmediately(t *testing.T) {
	called := false
	m := NewManager(&pushRecorder{}, FollowUpFunc(func(context.Context, string) error {
		called = true
		return nil
	}), time.Hour, zaptest.NewLogger(t))

	require.NoError(t, m.Start("steve", 10, ModeOnce))
	require.NoError(t, m.Stop("steve"))
	assert.Equal(t, Status{}, m.Status("steve"))
	assert.ErrorIs(t, m.Stop("steve"), ErrNotRunning)

	m.Shutdown()
	assert.False(t, called)
	assert.Equal(t, 0, m.Running())
}

func TestOnce_ExpiresToIdle(t *testing.T) {
	fired := make(chan string, 1)
	cmd := &pushRecorder{}
	m := newTestManager(t, cmd, FollowUpFunc(func(_ context.Context, key string) error {
		fired <- key
		return nil
	}))

	require.NoError(t, m.Start("steve", 3, ModeOnce))
	select {
	case key := <-fired:
		assert.Equal(t, "steve", key)
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up never ran")
	}
	require.Eventually(t, func() bool { return !m.Status("steve").Running }, time.Second, time.Millisecond)
	assert.Equal(t, 3, cmd.count("titleraw"), "one status push per second of the countdown")
	require.Eventually(t, func() bool { return cmd.count(`actionbar " "`) == 1 }, time.Second, time.Millisecond)
}

func TestLoop_TwoExpiriesStayRunning(t *testing.T) {
	calls := make(chan int)
	release := make(chan struct{})
	var mu sync.Mutex
	count := 0

	m := newTestManager(t, nil, FollowUpFunc(func(context.Context, string) error {
		mu.Lock()
		count++
		n := count
		mu.Unlock()
		calls <- n
		<-release
		return nil
	}))

	require.NoError(t, m.Start("steve", 3, ModeLoop))

	assert.Equal(t, 1, <-calls)
	assert.True(t, m.Status("steve").Running)
	release <- struct{}{}

	assert.Equal(t, 2, <-calls)
	st := m.Status("steve")
	assert.True(t, st.Running, "loop timer stays running after the first expiry")
	assert.Equal(t, 3, st.Initial)

	// Stop during the second effect so no third expiry can happen.
	require.NoError(t, m.Stop("steve"))
	release <- struct{}{}

	m.Shutdown()
	mu.Lock()
	assert.Equal(t, 2, count)
	mu.Unlock()
	assert.False(t, m.Status("steve").Running)
}

func TestLoop_RestartsRemaining(t *testing.T) {
	fired := make(chan struct{}, 10)
	m := newTestManager(t, nil, FollowUpFunc(func(context.Context, string) error {
		fired <- struct{}{}
		return nil
	}))
	require.NoError(t, m.Start("steve", 2, ModeLoop))
	<-fired
	<-fired
	st := m.Status("steve")
	assert.True(t, st.Running)
	assert.LessOrEqual(t, st.Remaining, 2)
	assert.Equal(t, ModeLoop, st.Mode)
}

func TestFollowUpError_AbortsToIdle(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	m := newTestManager(t, nil, FollowUpFunc(func(context.Context, string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("no players")
	}))
	require.NoError(t, m.Start("steve", 1, ModeLoop))
	require.Eventually(t, func() bool { return !m.Status("steve").Running }, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestFollowUpPanic_CleansUp(t *testing.T) {
	m := newTestManager(t, nil, FollowUpFunc(func(context.Context, string) error {
		panic("boom")
	}))
	require.NoError(t, m.Start("steve", 1, ModeOnce))
	require.Eventually(t, func() bool { return m.Running() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, m.Start("steve", 1, ModeOnce), "key is reusable after a panic")
}

func TestPushFailuresDoNotStopCountdown(t *testing.T) {
	fired := make(chan struct{}, 1)
	cmd := &pushRecorder{err: command.ErrNoPeer}
	m := newTestManager(t, cmd, FollowUpFunc(func(context.Context, string) error {
		fired <- struct{}{}
		return nil
	}))
	require.NoError(t, m.Start("steve", 2, ModeOnce))
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown stalled on push failures")
	}
}

func TestRestartAfterStopIsNotClobbered(t *testing.T) {
	m := NewManager(&pushRecorder{}, nopFollowUp(), time.Hour, zaptest.NewLogger(t))
	t.Cleanup(m.Shutdown)

	require.NoError(t, m.Start("steve", 30, ModeOnce))
	require.NoError(t, m.Stop("steve"))
	require.NoError(t, m.Start("steve", 45, ModeLoop))

	// Give the first goroutine time to observe cancellation and exit.
	time.Sleep(20 * time.Millisecond)
	st := m.Status("steve")
	assert.True(t, st.Running)
	assert.Equal(t, 45, st.Initial)
}

func TestKeysAreIndependent(t *testing.T) {
	m := NewManager(&pushRecorder{}, nopFollowUp(), time.Hour, zaptest.NewLogger(t))
	t.Cleanup(m.Shutdown)
	require.NoError(t, m.Start("steve", 30, ModeOnce))
	require.NoError(t, m.Start("alex", 10, ModeLoop))
	require.NoError(t, m.Stop("steve"))
	assert.True(t, m.Status("alex").Running)
	assert.Equal(t, 1, m.Running())
}

func TestShutdown_RejectsNewTimers(t *testing.T) {
	m := NewManager(&pushRecorder{}, nopFollowUp(), time.Hour, zaptest.NewLogger(t))
	require.NoError(t, m.Start("steve", 30, ModeOnce))
	m.Shutdown()
	assert.Equal(t, 0, m.Running())
	assert.ErrorIs(t, m.Start("alex", 5, ModeOnce), context.Canceled)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeOnce, "once": ModeOnce, "LOOP": ModeLoop, " loop ": ModeLoop} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("twice")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestPropertyStartStopLeavesIdle(t *testing.T) {
	m := NewManager(&pushRecorder{}, nopFollowUp(), time.Hour, zaptest.NewLogger(t))
	t.Cleanup(m.Shutdown)
	rapid.Check(t, func(rt *rapid.T) {
		key := rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "key")
		seconds := rapid.IntRange(-5, 500).Draw(rt, "seconds")
		err := m.Start(key, seconds, ModeOnce)
		if seconds <= 0 {
			if !errors.Is(err, ErrInvalidDuration) {
				rt.Fatalf("Start(%d) = %v", seconds, err)
			}
			return
		}
		if err != nil {
			rt.Fatalf("Start: %v", err)
		}
		if st := m.Status(key); !st.Running || st.Remaining != seconds {
			rt.Fatalf("status after start %+v", st)
		}
		if err := m.Stop(key); err != nil {
			rt.Fatalf("Stop: %v", err)
		}
		if m.Status(key).Running {
			rt.Fatalf("still running after stop")
		}
	})
}
