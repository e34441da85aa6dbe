package weft_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/weft"
)

func connect(from, to *weft.Node) {
	conn := &weft.Connection{From: from, To: to, FromType: "default", ToType: "default"}
	if from.Outgoing == nil {
		from.Outgoing = make(map[string][]*weft.Connection)
	}
	if to.Incoming == nil {
		to.Incoming = make(map[string][]*weft.Connection)
	}
	from.Outgoing["default"] = append(from.Outgoing["default"], conn)
	to.Incoming["default"] = append(to.Incoming["default"], conn)
}

func approvalDefinition() *weft.Definition {
	start := &weft.Node{ID: 1, Kind: weft.KindStart}
	task := &weft.Node{ID: 2, Name: "record", Kind: weft.KindTask, Handler: func(vars weft.Variables) (weft.Variables, error) {
		return weft.Variables{"recorded": true}, nil
	}}
	wait := &weft.Node{ID: 3, Name: "approval", Kind: weft.KindEvent, EventType: "approved", VariableName: "approver"}
	end := &weft.Node{ID: 4, Kind: weft.KindEnd}
	connect(start, task)
	connect(task, wait)
	connect(wait, end)
	return &weft.Definition{ID: "approval", Version: "1.0", Nodes: []*weft.Node{start, task, wait, end}}
}

func TestEngineLifecycle(t *testing.T) {
	config := weft.NewConfigBuilder(t.TempDir()).
		WithSchedulerInterval(50 * time.Millisecond).
		WithSchedulerWorkers(2).
		Build()

	eng, err := weft.New(config)
	require.NoError(t, err)

	process, err := eng.Register(approvalDefinition())
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop()

	assert.ErrorIs(t, eng.Start(context.Background()), weft.ErrAlreadyStarted)
	assert.Equal(t, []string{"approval"}, eng.ProcessIDs())

	instance, err := process.CreateInstanceWithBusinessKey("req-1", weft.Variables{"amount": 250})
	require.NoError(t, err)
	require.NoError(t, instance.Start("", ""))

	assert.Equal(t, weft.InstanceStatusActive, instance.Status())
	assert.Equal(t, true, instance.Variables()["recorded"])

	exported, err := eng.ExportInstance("approval", "req-1")
	require.NoError(t, err)
	assert.Contains(t, string(exported), `"business_key": "req-1"`)

	found, ok := process.Instances().FindByID("req-1")
	require.True(t, ok)
	require.NoError(t, found.Send(weft.Sig("approved", "alice")))

	assert.Equal(t, weft.InstanceStatusCompleted, instance.Status())
	assert.Equal(t, "alice", instance.Variables()["approver"])
	assert.Equal(t, 0, process.Instances().Size())
}

func TestRegisterExposesVersionedID(t *testing.T) {
	eng, err := weft.New(nil)
	require.NoError(t, err)

	_, err = eng.Register(approvalDefinition())
	require.NoError(t, err)

	// Persisted jobs reference the versioned id; both names must resolve.
	assert.NotNil(t, eng.Process("approval"))
	assert.NotNil(t, eng.Process("approval_1_0"))
	assert.Nil(t, eng.Process("unknown"))

	_, err = eng.Register(approvalDefinition())
	assert.Error(t, err, "duplicate registration is rejected")
}

func TestTimerDrivenCompletion(t *testing.T) {
	start := &weft.Node{ID: 1, Kind: weft.KindStart}
	timer := &weft.Node{ID: 2, Name: "cooling-off", Kind: weft.KindTimer, TimerDelay: 30 * time.Millisecond}
	end := &weft.Node{ID: 3, Kind: weft.KindEnd}
	connect(start, timer)
	connect(timer, end)
	definition := &weft.Definition{ID: "cooling", Version: "2", Nodes: []*weft.Node{start, timer, end}}

	config := weft.NewConfigBuilder(t.TempDir()).
		WithSchedulerInterval(25 * time.Millisecond).
		Build()

	eng, err := weft.New(config)
	require.NoError(t, err)
	process, err := eng.Register(definition)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop()

	instance, err := process.CreateInstanceWithBusinessKey("cool-1", nil)
	require.NoError(t, err)
	require.NoError(t, instance.Start("", ""))
	require.Equal(t, weft.InstanceStatusActive, instance.Status())

	assert.Eventually(t, func() bool {
		return instance.Status() == weft.InstanceStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidConfigRejected(t *testing.T) {
	config := weft.DefaultConfig()
	config.Scheduler.Workers = 0

	_, err := weft.New(config)
	assert.ErrorIs(t, err, weft.ErrInvalidConfig)
}
