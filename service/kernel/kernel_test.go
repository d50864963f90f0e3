package kernel

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kernsim/model/resource"
	"github.com/viant/kernsim/policy"
	"github.com/viant/kernsim/runtime/process"
	"github.com/viant/kernsim/runtime/vm"
	"github.com/viant/kernsim/service/dao/store"
	"github.com/viant/kernsim/service/event"
	"github.com/viant/kernsim/service/messaging/memory"
	"github.com/viant/kernsim/service/pool"
)

type stepFunc func(p *scripted) (process.Outcome, error)

// scripted replays one stepFunc per step and reports None once exhausted.
type scripted struct {
	process.Base
	script []stepFunc
	visits *[]int
	steps  int
}

func newScripted(id, priority int, visits *[]int, script ...stepFunc) *scripted {
	return &scripted{Base: process.NewBase(id, 0, priority), script: script, visits: visits}
}

func (s *scripted) Step(_ context.Context, _ vm.Processor) (process.Outcome, error) {
	s.steps++
	if s.visits != nil {
		*s.visits = append(*s.visits, s.ID())
	}
	if len(s.script) == 0 {
		return process.None(), nil
	}
	next := s.script[0]
	s.script = s.script[1:]
	return next(s)
}

func emit(o process.Outcome) stepFunc {
	return func(*scripted) (process.Outcome, error) { return o, nil }
}

func release(t resource.Type) stepFunc {
	return func(p *scripted) (process.Outcome, error) {
		r, err := p.TakeResource(t)
		return process.Release(r), err
	}
}

func terminate() stepFunc {
	return func(p *scripted) (process.Outcome, error) { return process.Terminate(p.ID()), nil }
}

func repeat(n int, f stepFunc) []stepFunc {
	ret := make([]stepFunc, n)
	for i := range ret {
		ret[i] = f
	}
	return ret
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newKernel(inventory map[resource.Type]int, options ...Option) *Kernel {
	p := pool.New()
	p.Seed(inventory)
	options = append([]Option{WithLogger(quietLogger()), WithPool(p), WithRunID("run-test")}, options...)
	return New(options...)
}

func held(k *Kernel, t resource.Type) int {
	count := 0
	for _, p := range k.Processes() {
		for _, r := range p.Resources() {
			if r.Type == t {
				count++
			}
		}
	}
	return count
}

func TestKernel_ChannelContention(t *testing.T) {
	ctx := context.Background()
	k := newKernel(map[resource.Type]int{resource.Channel: 1})
	a := newScripted(1, 1, nil, emit(process.Request(resource.Channel)), release(resource.Channel), emit(process.None()))
	b := newScripted(2, 2, nil, repeat(3, emit(process.Request(resource.Channel)))...)
	require.NoError(t, k.Bootstrap(b, a))

	require.NoError(t, k.Tick(ctx))
	assert.True(t, a.HasResource(resource.Channel))
	assert.False(t, b.HasResource(resource.Channel))
	assert.Equal(t, 0, k.Pool().Free(resource.Channel))
	assert.Equal(t, 1, held(k, resource.Channel)+k.Pool().Free(resource.Channel))

	require.NoError(t, k.Tick(ctx))
	assert.False(t, a.HasResource(resource.Channel))
	assert.True(t, b.HasResource(resource.Channel))
	assert.Equal(t, 1, held(k, resource.Channel)+k.Pool().Free(resource.Channel))

	counters := k.Progress().Snapshot()
	assert.Equal(t, 2, counters.Ticks)
	assert.Equal(t, 2, counters.Grants)
	assert.Equal(t, 1, counters.Misses)
	assert.Equal(t, 1, counters.Releases)
}

func TestKernel_PriorityOrder(t *testing.T) {
	ctx := context.Background()
	var visits []int
	k := newKernel(nil)
	probe := emit(process.Request(resource.Disk))
	require.NoError(t, k.Bootstrap(
		newScripted(1, 1, &visits, repeat(2, probe)...),
		newScripted(2, 0, &visits, repeat(2, probe)...),
		newScripted(3, 1, &visits, repeat(2, probe)...),
		newScripted(4, 0, &visits, repeat(2, probe)...),
	))
	require.NoError(t, k.Tick(ctx))
	assert.Equal(t, []int{2, 4, 1, 3}, visits)

	visits = nil
	require.NoError(t, k.Tick(ctx))
	assert.Equal(t, []int{2, 4, 1, 3}, visits)

	var ids []int
	for _, p := range k.Processes() {
		ids = append(ids, p.ID())
	}
	assert.Equal(t, []int{2, 4, 1, 3}, ids)
}

func TestKernel_Grant(t *testing.T) {
	testCases := []struct {
		description string
		inventory   map[resource.Type]int
		expectHeld  bool
		expectFree  int
	}{
		{description: "free instance is granted", inventory: map[resource.Type]int{resource.Disk: 2}, expectHeld: true, expectFree: 1},
		{description: "miss leaves requester eligible", inventory: nil, expectHeld: false, expectFree: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			k := newKernel(tc.inventory)
			p := newScripted(1, 0, nil, emit(process.Request(resource.Disk)))
			require.NoError(t, k.Bootstrap(p))
			require.NoError(t, k.Tick(context.Background()))
			assert.Equal(t, tc.expectHeld, p.HasResource(resource.Disk))
			assert.Equal(t, process.StateReady, p.State())
			assert.Equal(t, tc.expectFree, k.Pool().Free(resource.Disk))
			assert.Equal(t, 1, p.steps)
		})
	}
}

func TestKernel_NoneIsRetriedOnce(t *testing.T) {
	k := newKernel(nil)
	p := newScripted(1, 0, nil, emit(process.None()), emit(process.None()), emit(process.Request(resource.Disk)))
	require.NoError(t, k.Bootstrap(p))
	require.NoError(t, k.Tick(context.Background()))
	assert.Equal(t, 2, p.steps)
}

func TestKernel_ReleaseContinuation(t *testing.T) {
	ctx := context.Background()

	t.Run("continuation earns no further step", func(t *testing.T) {
		k := newKernel(map[resource.Type]int{resource.Channel: 2})
		p := newScripted(1, 0, nil,
			emit(process.Request(resource.Channel)),
			emit(process.Request(resource.Channel)),
			release(resource.Channel), release(resource.Channel), emit(process.None()),
		)
		require.NoError(t, k.Bootstrap(p))
		require.NoError(t, k.Tick(ctx))
		require.NoError(t, k.Tick(ctx))
		assert.Equal(t, 2, p.steps)

		require.NoError(t, k.Tick(ctx))
		assert.Equal(t, 4, p.steps, "release earns one continuation, the continuation earns none")
		assert.Equal(t, 2, k.Pool().Free(resource.Channel))
		assert.False(t, p.HasResource(resource.Channel))
	})

	t.Run("release from a retry keeps its continuation", func(t *testing.T) {
		k := newKernel(map[resource.Type]int{resource.Channel: 1})
		p := newScripted(1, 0, nil,
			emit(process.Request(resource.Channel)),
			emit(process.None()), release(resource.Channel), emit(process.Request(resource.Disk)),
			emit(process.None()),
		)
		require.NoError(t, k.Bootstrap(p))
		require.NoError(t, k.Tick(ctx))
		assert.Equal(t, 1, p.steps)

		require.NoError(t, k.Tick(ctx))
		assert.Equal(t, 4, p.steps, "none, release, then the release continuation")
		assert.Equal(t, 1, k.Pool().Free(resource.Channel))
		assert.Len(t, p.script, 1)
	})

	t.Run("retry of a retry is not stepped", func(t *testing.T) {
		k := newKernel(nil)
		p := newScripted(1, 0, nil, emit(process.None()), emit(process.None()), emit(process.None()))
		require.NoError(t, k.Bootstrap(p))
		require.NoError(t, k.Tick(ctx))
		assert.Equal(t, 2, p.steps)
	})
}

func TestKernel_Blocked(t *testing.T) {
	ctx := context.Background()

	t.Run("request is granted without unblocking", func(t *testing.T) {
		k := newKernel(map[resource.Type]int{resource.Channel: 1})
		p := newScripted(1, 0, nil, emit(process.Request(resource.Channel)))
		p.SetState(process.StateBlocked)
		require.NoError(t, k.Bootstrap(p))
		require.NoError(t, k.Tick(ctx))
		assert.True(t, p.HasResource(resource.Channel))
		assert.Equal(t, process.StateBlocked, p.State())
		assert.Equal(t, 1, p.steps)
	})

	t.Run("readied process is stepped again in the same visit", func(t *testing.T) {
		k := newKernel(map[resource.Type]int{resource.Channel: 1})
		p := newScripted(1, 0, nil, func(p *scripted) (process.Outcome, error) {
			p.SetState(process.StateReady)
			return process.None(), nil
		}, emit(process.Request(resource.Channel)))
		p.SetState(process.StateBlocked)
		require.NoError(t, k.Bootstrap(p))
		require.NoError(t, k.Tick(ctx))
		assert.Equal(t, 2, p.steps)
		assert.True(t, p.HasResource(resource.Channel))
	})

	t.Run("spawn is a protocol violation", func(t *testing.T) {
		k := newKernel(map[resource.Type]int{resource.Channel: 1})
		parent := newScripted(1, 0, nil, emit(process.Spawn(newScripted(2, 0, nil))))
		parent.SetState(process.StateBlocked)
		other := newScripted(3, 1, nil, emit(process.Request(resource.Channel)))
		require.NoError(t, k.Bootstrap(parent, other))

		err := k.Run(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProtocolViolation))
		var pErr *ProtocolError
		require.True(t, errors.As(err, &pErr))
		assert.Equal(t, 1, pErr.ProcessID)
		assert.Equal(t, process.StateBlocked, pErr.State)
		assert.Equal(t, process.KindSpawn, pErr.Kind)
		assert.Equal(t, 1, k.Pool().Free(resource.Channel))
		assert.Equal(t, 0, other.steps)
		assert.Len(t, k.Processes(), 2)
	})

	t.Run("suspended processes are not stepped", func(t *testing.T) {
		k := newKernel(nil)
		p := newScripted(1, 0, nil)
		p.SetState(process.StateBlockedSuspended)
		require.NoError(t, k.Bootstrap(p))
		require.NoError(t, k.Tick(ctx))
		assert.Equal(t, 0, p.steps)
	})
}

func TestKernel_SpawnBarrier(t *testing.T) {
	ctx := context.Background()
	var visits []int
	k := newKernel(nil)
	child := newScripted(7, 0, &visits, emit(process.Request(resource.Disk)))
	parent := newScripted(1, 5, &visits, emit(process.Spawn(child)), emit(process.Request(resource.Disk)))
	require.NoError(t, k.Bootstrap(parent))

	require.NoError(t, k.Tick(ctx))
	assert.Equal(t, 0, child.steps)
	_, ok := k.Process(7)
	assert.True(t, ok)

	visits = nil
	require.NoError(t, k.Tick(ctx))
	assert.Equal(t, []int{7, 1}, visits)
	assert.Equal(t, 1, k.Progress().Snapshot().Spawns)
}

func TestKernel_Bootstrap(t *testing.T) {
	testCases := []struct {
		description string
		existing    []int
		ids         []int
		expectErr   bool
		expectIDs   []int
	}{
		{description: "fresh ids", ids: []int{1, 2}, expectIDs: []int{1, 2}},
		{description: "duplicate within batch", ids: []int{1, 2, 1}, expectErr: true},
		{description: "clash with scheduled process", existing: []int{3}, ids: []int{1, 3}, expectErr: true, expectIDs: []int{3}},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			k := newKernel(nil)
			for _, id := range tc.existing {
				require.NoError(t, k.Bootstrap(newScripted(id, 0, nil)))
			}
			var procs []process.Process
			for _, id := range tc.ids {
				procs = append(procs, newScripted(id, 0, nil))
			}
			err := k.Bootstrap(procs...)
			var ids []int
			for _, p := range k.Processes() {
				ids = append(ids, p.ID())
			}
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrProtocolViolation)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expectIDs, ids)
			assert.Equal(t, len(ids), k.Progress().Snapshot().Processes)
		})
	}
}

func TestKernel_DroppedEvents(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	queue := memory.NewQueue[event.Event[Trace]](memory.Config{QueueBuffer: 1})
	p := pool.New()
	p.Seed(map[resource.Type]int{resource.Channel: 1})
	k := New(WithLogger(logger), WithPool(p), WithPublisher(event.NewPublisher[Trace](queue)))
	require.NoError(t, k.Bootstrap(
		newScripted(1, 0, nil, emit(process.Request(resource.Channel))),
		newScripted(2, 1, nil, emit(process.Request(resource.Channel))),
		newScripted(3, 2, nil, emit(process.Request(resource.Channel))),
	))
	require.NoError(t, k.Tick(context.Background()))

	assert.Equal(t, 2, k.DroppedEvents())
	assert.Len(t, queue.Drain(), 1)
	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestKernel_SpawnDuplicateID(t *testing.T) {
	k := newKernel(nil)
	parent := newScripted(1, 0, nil, emit(process.Spawn(newScripted(1, 0, nil))))
	require.NoError(t, k.Bootstrap(parent))
	err := k.Tick(context.Background())
	assert.ErrorIs(t, err, ErrProtocolViolation)

	assert.Error(t, k.Bootstrap(newScripted(1, 0, nil)))
}

func TestKernel_TerminationBarrier(t *testing.T) {
	ctx := context.Background()
	k := newKernel(map[resource.Type]int{resource.Channel: 1})
	var seen bool
	a := newScripted(1, 0, nil, emit(process.Request(resource.Channel)), terminate())
	b := newScripted(2, 1, nil, emit(process.Request(resource.Disk)), func(p *scripted) (process.Outcome, error) {
		_, seen = k.Process(1)
		return process.Request(resource.Disk), nil
	})
	require.NoError(t, k.Bootstrap(a, b))

	require.NoError(t, k.Tick(ctx))
	require.NoError(t, k.Tick(ctx))
	assert.True(t, seen, "terminated process stays visible until the tick ends")
	_, ok := k.Process(1)
	assert.False(t, ok)
	assert.Equal(t, 2, a.steps)
	assert.Equal(t, 0, k.Pool().Free(resource.Channel), "resources of a removed process are not reclaimed")
	assert.Equal(t, 1, k.Progress().Snapshot().Removals)
}

func TestKernel_TerminateOther(t *testing.T) {
	k := newKernel(nil)
	require.NoError(t, k.Bootstrap(
		newScripted(1, 0, nil, emit(process.Terminate(2))),
		newScripted(2, 1, nil),
	))
	err := k.Tick(context.Background())
	var pErr *ProtocolError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, process.KindTerminate, pErr.Kind)
}

func TestKernel_Signals(t *testing.T) {
	ctx := context.Background()

	t.Run("pending signal applies before the target is visited", func(t *testing.T) {
		k := newKernel(nil)
		target := newScripted(2, 1, nil)
		require.NoError(t, k.Bootstrap(newScripted(1, 0, nil, emit(process.Signal(2, process.StateReadySuspended))), target))
		require.NoError(t, k.Tick(ctx))
		assert.Equal(t, 0, target.steps)
		assert.Equal(t, process.StateReadySuspended, target.State())
	})

	t.Run("signal to a visited process applies at the end of the tick", func(t *testing.T) {
		k := newKernel(nil)
		target := newScripted(1, 0, nil, emit(process.Request(resource.Disk)))
		require.NoError(t, k.Bootstrap(target, newScripted(2, 1, nil, emit(process.Signal(1, process.StateBlocked)))))
		require.NoError(t, k.Tick(ctx))
		assert.Equal(t, process.StateBlocked, target.State())
		assert.Equal(t, 1, target.steps)
	})

	t.Run("signal to a spawned child applies after it joins", func(t *testing.T) {
		k := newKernel(nil)
		child := newScripted(5, 0, nil)
		require.NoError(t, k.Bootstrap(
			newScripted(1, 0, nil, emit(process.Spawn(child))),
			newScripted(2, 1, nil, emit(process.Signal(5, process.StateBlockedSuspended))),
		))
		require.NoError(t, k.Tick(ctx))
		assert.Equal(t, process.StateBlockedSuspended, child.State())
	})

	t.Run("signal to a removed process is dropped", func(t *testing.T) {
		k := newKernel(nil)
		require.NoError(t, k.Bootstrap(
			newScripted(1, 0, nil, terminate()),
			newScripted(2, 1, nil, emit(process.Signal(1, process.StateReady))),
		))
		require.NoError(t, k.Tick(ctx))
		assert.Len(t, k.Processes(), 1)
	})

	t.Run("signal to an unknown process is a protocol violation", func(t *testing.T) {
		k := newKernel(nil)
		require.NoError(t, k.Bootstrap(newScripted(1, 0, nil, emit(process.Signal(99, process.StateReady)))))
		err := k.Tick(ctx)
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})
}

func TestKernel_SuspendedWaiterLeavesQueue(t *testing.T) {
	ctx := context.Background()
	p := pool.New(pool.WithPolicy(&policy.Policy{Mode: policy.ModeFIFO}))
	p.Seed(map[resource.Type]int{resource.Channel: 1})
	k := New(WithLogger(quietLogger()), WithPool(p))
	holder := newScripted(1, 0, nil,
		emit(process.Request(resource.Channel)),
		release(resource.Channel), emit(process.Signal(2, process.StateReadySuspended)),
	)
	waiter := newScripted(2, 1, nil, repeat(2, emit(process.Request(resource.Channel)))...)
	late := newScripted(3, 2, nil, repeat(2, emit(process.Request(resource.Channel)))...)
	require.NoError(t, k.Bootstrap(holder, waiter, late))

	require.NoError(t, k.Tick(ctx))
	assert.Equal(t, []int{2, 3}, k.Pool().Waiters(resource.Channel))

	require.NoError(t, k.Tick(ctx))
	assert.Equal(t, process.StateReadySuspended, waiter.State())
	assert.Equal(t, 1, waiter.steps)
	assert.True(t, late.HasResource(resource.Channel), "suspended head must not block the next waiter")
	assert.Empty(t, k.Pool().Waiters(resource.Channel))
}

func TestKernel_StepErrors(t *testing.T) {
	testCases := []struct {
		description string
		step        stepFunc
	}{
		{description: "release of a resource not held", step: release(resource.Channel)},
		{description: "malformed outcome", step: emit(process.Release(nil))},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			k := newKernel(nil)
			require.NoError(t, k.Bootstrap(newScripted(1, 0, nil, tc.step)))
			err := k.Tick(context.Background())
			assert.ErrorIs(t, err, ErrProtocolViolation)
		})
	}

	k := newKernel(nil)
	require.NoError(t, k.Bootstrap(newScripted(1, 0, nil, release(resource.Channel))))
	assert.ErrorIs(t, k.Tick(context.Background()), process.ErrResourceNotHeld)
}

func TestKernel_Run(t *testing.T) {
	t.Run("stops when idle", func(t *testing.T) {
		k := newKernel(nil)
		require.NoError(t, k.Bootstrap(newScripted(1, 0, nil, emit(process.None()), terminate())))
		require.NoError(t, k.Run(context.Background()))
		assert.Equal(t, 1, k.Ticks())
		assert.Empty(t, k.Processes())
	})

	t.Run("stops at the tick limit", func(t *testing.T) {
		k := newKernel(nil, WithConfig(Config{MaxTicks: 3}))
		require.NoError(t, k.Bootstrap(newScripted(1, 0, nil)))
		require.NoError(t, k.Run(context.Background()))
		assert.Equal(t, 3, k.Ticks())
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		k := newKernel(nil)
		require.NoError(t, k.Bootstrap(newScripted(1, 0, nil)))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, k.Run(ctx), context.Canceled)
		assert.Equal(t, 0, k.Ticks())
	})
}

func TestKernel_Events(t *testing.T) {
	queue := memory.NewQueue[event.Event[Trace]](memory.DefaultConfig())
	k := newKernel(map[resource.Type]int{resource.Channel: 1}, WithPublisher(event.NewPublisher[Trace](queue)))
	require.NoError(t, k.Bootstrap(
		newScripted(1, 0, nil, emit(process.Request(resource.Channel))),
		newScripted(2, 1, nil, emit(process.Request(resource.Channel))),
	))
	require.NoError(t, k.Tick(context.Background()))

	events := queue.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, TraceGrant, events[0].Data.Kind)
	assert.Equal(t, 1, events[0].Context.ProcessID)
	assert.Equal(t, "CHANNEL", events[0].Data.Resource)
	assert.Equal(t, TraceMiss, events[1].Data.Kind)
	assert.Equal(t, "run-test", events[1].Context.RunID)
	assert.Equal(t, 1, events[1].Context.Tick)
}

func TestKernel_Snapshots(t *testing.T) {
	ctx := context.Background()
	snapshots := store.NewMemoryStore[int, Snapshot](SnapshotKey, 0)
	k := newKernel(map[resource.Type]int{resource.Channel: 1},
		WithSnapshots(snapshots), WithConfig(Config{SnapshotEvery: 2}))
	require.NoError(t, k.Bootstrap(newScripted(3, 0, nil, emit(process.Request(resource.Channel)))))
	for i := 0; i < 4; i++ {
		require.NoError(t, k.Tick(ctx))
	}

	list, err := snapshots.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Tick)
	assert.Equal(t, "run-test", list[0].RunID)
	require.Len(t, list[0].Processes, 1)
	assert.Equal(t, []string{"CHANNEL"}, list[0].Processes[0].Resources)
	assert.Equal(t, "READY", list[0].Processes[0].State)
	assert.Empty(t, list[0].Free)
}
