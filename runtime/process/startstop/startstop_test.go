package startstop

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kernsim/model/resource"
	"github.com/viant/kernsim/runtime/process"
	"github.com/viant/kernsim/runtime/vm"
	"github.com/viant/kernsim/service/kernel"
	"github.com/viant/kernsim/service/pool"
)

func newKernel(cpu *vm.Machine) *kernel.Kernel {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p := pool.New()
	p.Seed(map[resource.Type]int{resource.Channel: 1})
	return kernel.New(kernel.WithLogger(logger), kernel.WithPool(p), kernel.WithProcessor(cpu), kernel.WithConfig(kernel.Config{MaxTicks: 200}))
}

func TestProcess_PrintsAllLines(t *testing.T) {
	out := &bytes.Buffer{}
	cpu := vm.NewMachine(vm.WithOutput(out))
	cpu.SetVar(11, 7)
	k := newKernel(cpu)

	boot := New(k.NextID(), k, WithLines("eone", "etwo", "n1"))
	require.NoError(t, k.Bootstrap(boot))
	require.NoError(t, k.Run(context.Background()))

	assert.Equal(t, "one\ntwo\n7\n", out.String())
	assert.Equal(t, 3, boot.Acked())
	assert.Less(t, k.Ticks(), 200)

	procs := k.Processes()
	require.Len(t, procs, 1)
	assert.Equal(t, boot.PrinterID(), procs[0].ID())
	assert.Equal(t, boot.ID(), procs[0].ParentID())
	assert.Equal(t, process.StateReadySuspended, procs[0].State())

	assert.Equal(t, 1, k.Pool().Free(resource.Channel))
	assert.Equal(t, 0, k.Pool().Free(resource.LineInMemory))
	assert.Equal(t, 0, k.Pool().Free(resource.FromInterrupt))
}

func TestProcess_NoLines(t *testing.T) {
	ctx := context.Background()
	cpu := vm.NewMachine()
	ids := process.NewSequence(10)
	boot := New(1, ids, WithPrintPriority(4))

	outcome, err := boot.Step(ctx, cpu)
	require.NoError(t, err)
	require.Equal(t, process.KindSpawn, outcome.Kind())
	assert.Equal(t, 11, outcome.Child().ID())
	assert.Equal(t, 4, outcome.Child().Priority())

	outcome, _ = boot.Step(ctx, cpu)
	assert.Equal(t, process.KindNone, outcome.Kind())

	outcome, _ = boot.Step(ctx, cpu)
	assert.Equal(t, process.KindSignal, outcome.Kind())
	assert.Equal(t, 11, outcome.TargetID())
	assert.Equal(t, process.StateReadySuspended, outcome.TargetState())

	outcome, _ = boot.Step(ctx, cpu)
	assert.Equal(t, process.KindTerminate, outcome.Kind())
	assert.Equal(t, 1, outcome.TargetID())
}

func TestProcess_Await(t *testing.T) {
	ctx := context.Background()
	cpu := vm.NewMachine()
	boot := New(1, process.NewSequence(1), WithLines("ea", "eb"))
	for i := 0; i < 3; i++ {
		_, err := boot.Step(ctx, cpu)
		require.NoError(t, err)
	}
	outcome, _ := boot.Step(ctx, cpu)
	assert.Equal(t, process.KindRequest, outcome.Kind())
	assert.Equal(t, resource.FromInterrupt, outcome.ResourceType())
	assert.Equal(t, process.StateBlocked, boot.State())

	boot.AddResource(resource.NewMessage(resource.FromInterrupt, "printed:2"))
	outcome, _ = boot.Step(ctx, cpu)
	assert.Equal(t, process.KindRequest, outcome.Kind())
	assert.Equal(t, 1, boot.Acked())

	boot.AddResource(resource.NewMessage(resource.FromInterrupt, "printed:2"))
	outcome, _ = boot.Step(ctx, cpu)
	assert.Equal(t, process.KindNone, outcome.Kind())
	assert.Equal(t, process.StateReady, boot.State())
}
