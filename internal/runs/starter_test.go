package runs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"compstat/internal/workflows"

	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

type fakeRun struct {
	tclient.WorkflowRun
	id string
}

func (r fakeRun) GetID() string    { return r.id }
func (r fakeRun) GetRunID() string { return "run-" + r.id }

type fakeValue struct{ raw []byte }

func (v fakeValue) HasValue() bool           { return len(v.raw) > 0 }
func (v fakeValue) Get(ptr interface{}) error { return json.Unmarshal(v.raw, ptr) }

type fakeClient struct {
	opts     []tclient.StartWorkflowOptions
	args     [][]interface{}
	startErr error
	progress workflows.RunProgress
	queried  string
}

func (c *fakeClient) ExecuteWorkflow(_ context.Context, options tclient.StartWorkflowOptions, _ interface{}, args ...interface{}) (tclient.WorkflowRun, error) {
	if c.startErr != nil {
		return nil, c.startErr
	}
	c.opts = append(c.opts, options)
	c.args = append(c.args, args)
	return fakeRun{id: options.ID}, nil
}

func (c *fakeClient) QueryWorkflow(_ context.Context, workflowID string, _ string, _ string, _ ...interface{}) (converter.EncodedValue, error) {
	c.queried = workflowID
	raw, err := json.Marshal(c.progress)
	if err != nil {
		return nil, err
	}
	return fakeValue{raw: raw}, nil
}

func newTestStarter(c *fakeClient) *Starter {
	return NewStarter(c, Defaults{TaskQueue: "compstat-test", LogDir: "/logs", BatchSize: 50, MaxConcurrent: 2})
}

func TestStartHarvestFillsDefaults(t *testing.T) {
	c := &fakeClient{}
	run, err := newTestStarter(c).StartHarvest(context.Background(), workflows.HarvestInput{Publisher: "AIP"})
	require.NoError(t, err)
	require.Contains(t, run.WorkflowID, "harvest-")
	require.Equal(t, "run-"+run.WorkflowID, run.RunID)
	require.Equal(t, "compstat-test", c.opts[0].TaskQueue)
	require.False(t, c.opts[0].WorkflowExecutionErrorWhenAlreadyStarted)

	in := c.args[0][0].(workflows.HarvestInput)
	require.Equal(t, "/logs", in.LogDir)
	require.Equal(t, "AIP", in.Publisher)
	require.Equal(t, 50, in.BatchSize)
	require.Equal(t, 2, in.MaxConcurrentBatches)
}

func TestStartRetryDefaultsMatchTypes(t *testing.T) {
	c := &fakeClient{}
	_, err := newTestStarter(c).StartRetry(context.Background(), workflows.RetryInput{})
	require.NoError(t, err)
	in := c.args[0][0].(workflows.RetryInput)
	require.Equal(t, workflows.DefaultRetryMatchTypes, in.MatchTypes)
}

func TestStartCompletenessIsExclusive(t *testing.T) {
	c := &fakeClient{}
	run, err := newTestStarter(c).StartCompleteness(context.Background(), workflows.CompletenessInput{})
	require.NoError(t, err)
	require.Equal(t, workflows.CompletenessWorkflowID, run.WorkflowID)
	require.True(t, c.opts[0].WorkflowExecutionErrorWhenAlreadyStarted)
	require.True(t, c.args[0][0].(workflows.CompletenessInput).Recompute)
}

func TestStartCompletenessAlreadyRunning(t *testing.T) {
	c := &fakeClient{startErr: &serviceerror.WorkflowExecutionAlreadyStarted{Message: "started"}}
	_, err := newTestStarter(c).StartCompleteness(context.Background(), workflows.CompletenessInput{Recompute: true})
	require.True(t, errors.Is(err, ErrAlreadyRunning))
}

func TestStartLoadClassicHasNoArgs(t *testing.T) {
	c := &fakeClient{}
	run, err := newTestStarter(c).StartLoadClassic(context.Background())
	require.NoError(t, err)
	require.Equal(t, LoadClassicWorkflowID, run.WorkflowID)
	require.Empty(t, c.args[0])
}

func TestStartOtherErrorIsWrapped(t *testing.T) {
	c := &fakeClient{startErr: errors.New("unavailable")}
	_, err := newTestStarter(c).StartLoadClassic(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrAlreadyRunning))
}

func TestProgress(t *testing.T) {
	c := &fakeClient{progress: workflows.RunProgress{Files: 10, Batches: 2, BatchesDone: 1}}
	prog, err := newTestStarter(c).Progress(context.Background(), "harvest-1")
	require.NoError(t, err)
	require.Equal(t, "harvest-1", c.queried)
	require.Equal(t, 10, prog.Files)
	require.Equal(t, 1, prog.BatchesDone)
}
