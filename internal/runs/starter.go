// Package runs starts and inspects the pipeline workflows on behalf of the
// CLI, the HTTP API and the scheduler.
package runs

import (
	"context"
	"errors"
	"fmt"

	"compstat/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

// LoadClassicWorkflowID is fixed so two reference reloads never overlap.
const LoadClassicWorkflowID = "compstat-load-classic"

var ErrAlreadyRunning = errors.New("workflow already running")

// Client is the part of the Temporal client the starter needs.
type Client interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Run struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

type Defaults struct {
	TaskQueue     string
	LogDir        string
	BatchSize     int
	MaxConcurrent int
}

type Starter struct {
	client   Client
	defaults Defaults
}

func NewStarter(c Client, d Defaults) *Starter {
	return &Starter{client: c, defaults: d}
}

func (s *Starter) StartHarvest(ctx context.Context, in workflows.HarvestInput) (Run, error) {
	if in.LogDir == "" {
		in.LogDir = s.defaults.LogDir
	}
	if in.BatchSize <= 0 {
		in.BatchSize = s.defaults.BatchSize
	}
	if in.MaxConcurrentBatches <= 0 {
		in.MaxConcurrentBatches = s.defaults.MaxConcurrent
	}
	return s.start(ctx, s.options("harvest-"+uuid.NewString(), false), workflows.HarvestWorkflow, in)
}

func (s *Starter) StartRetry(ctx context.Context, in workflows.RetryInput) (Run, error) {
	if len(in.MatchTypes) == 0 {
		in.MatchTypes = workflows.DefaultRetryMatchTypes
	}
	if in.BatchSize <= 0 {
		in.BatchSize = s.defaults.BatchSize
	}
	if in.MaxConcurrentBatches <= 0 {
		in.MaxConcurrentBatches = s.defaults.MaxConcurrent
	}
	return s.start(ctx, s.options("retry-"+uuid.NewString(), false), workflows.RetryWorkflow, in)
}

// StartCompleteness fails with ErrAlreadyRunning while a previous
// recompute or export is still open.
func (s *Starter) StartCompleteness(ctx context.Context, in workflows.CompletenessInput) (Run, error) {
	if !in.Recompute && !in.Export {
		in.Recompute = true
	}
	return s.start(ctx, s.options(workflows.CompletenessWorkflowID, true), workflows.CompletenessWorkflow, in)
}

func (s *Starter) StartLoadClassic(ctx context.Context) (Run, error) {
	return s.start(ctx, s.options(LoadClassicWorkflowID, true), workflows.LoadClassicWorkflow)
}

// Progress queries a running harvest or retry workflow.
func (s *Starter) Progress(ctx context.Context, workflowID string) (workflows.RunProgress, error) {
	var prog workflows.RunProgress
	resp, err := s.client.QueryWorkflow(ctx, workflowID, "", workflows.QueryGetProgress)
	if err != nil {
		return prog, fmt.Errorf("query progress: %w", err)
	}
	if err := resp.Get(&prog); err != nil {
		return prog, fmt.Errorf("decode progress: %w", err)
	}
	return prog, nil
}

func (s *Starter) options(id string, exclusive bool) tclient.StartWorkflowOptions {
	opts := tclient.StartWorkflowOptions{
		ID:        id,
		TaskQueue: s.defaults.TaskQueue,
	}
	if exclusive {
		opts.WorkflowIDReusePolicy = enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE
		opts.WorkflowExecutionErrorWhenAlreadyStarted = true
	}
	return opts
}

func (s *Starter) start(ctx context.Context, opts tclient.StartWorkflowOptions, wf interface{}, args ...interface{}) (Run, error) {
	we, err := s.client.ExecuteWorkflow(ctx, opts, wf, args...)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return Run{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, opts.ID)
		}
		return Run{}, fmt.Errorf("start workflow %s: %w", opts.ID, err)
	}
	return Run{WorkflowID: we.GetID(), RunID: we.GetRunID()}, nil
}
