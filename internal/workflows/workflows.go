package workflows

import (
	"fmt"
	"time"

	"compstat/internal/activities"
	"compstat/internal/harvest"
	"compstat/internal/match"
	"compstat/internal/models"
	"compstat/internal/reconcile"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetProgress = "GetProgress"

	// CompletenessWorkflowID is fixed so only one recompute runs at a time.
	CompletenessWorkflowID = "compstat-completeness"

	defaultBatchSize     = 250
	defaultMaxConcurrent = 4
)

// DefaultRetryMatchTypes are the ledger outcomes worth another attempt.
var DefaultRetryMatchTypes = []string{string(match.KindMismatch), string(match.KindUnmatched), string(match.KindFailed)}

func shortActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
}

func longActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    2,
		},
	}
}

// HarvestWorkflow reconciles every metadata file named by the selected
// harvest logs, fanning batches out to child workflows.
func HarvestWorkflow(ctx workflow.Context, input HarvestInput) (RunProgress, error) {
	progress := newProgress()
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (RunProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}
	ctx = workflow.WithActivityOptions(ctx, shortActivityOptions())

	var logs activities.ListHarvestLogsOutput
	if err := workflow.ExecuteActivity(ctx, "ListHarvestLogsActivity", activities.ListHarvestLogsInput{
		LogDir:    input.LogDir,
		Publisher: input.Publisher,
		Latest:    input.Latest,
	}).Get(ctx, &logs); err != nil {
		return progress, err
	}
	progress.Logs = len(logs.Logs)

	files := make([]string, 0)
	for _, log := range logs.Logs {
		var out activities.ReadHarvestLogOutput
		if err := workflow.ExecuteActivity(ctx, "ReadHarvestLogActivity", activities.ReadHarvestLogInput{LogPath: log}).Get(ctx, &out); err != nil {
			workflow.GetLogger(ctx).Warn("skipping unreadable harvest log", "log", log, "error", err)
			continue
		}
		files = append(files, out.Files...)
	}

	fanOutBatches(ctx, &progress, files, input.BatchSize, input.MaxConcurrentBatches)
	return progress, nil
}

// RetryWorkflow resubmits ledger rows whose outcome deserves another try.
func RetryWorkflow(ctx workflow.Context, input RetryInput) (RunProgress, error) {
	progress := newProgress()
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (RunProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}
	ctx = workflow.WithActivityOptions(ctx, shortActivityOptions())

	kinds := input.MatchTypes
	if len(kinds) == 0 {
		kinds = DefaultRetryMatchTypes
	}
	var out activities.ListRetryFilesOutput
	if err := workflow.ExecuteActivity(ctx, "ListRetryFilesActivity", activities.ListRetryFilesInput{MatchTypes: kinds}).Get(ctx, &out); err != nil {
		return progress, err
	}
	fanOutBatches(ctx, &progress, out.Files, input.BatchSize, input.MaxConcurrentBatches)
	return progress, nil
}

// fanOutBatches runs at most maxConcurrent ReconcileBatchWorkflow children
// at a time.
func fanOutBatches(ctx workflow.Context, progress *RunProgress, files []string, batchSize, maxConcurrent int) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	batches := harvest.Batches(files, batchSize)
	progress.Files = len(files)
	progress.Batches = len(batches)
	parentID := workflow.GetInfo(ctx).WorkflowExecution.ID

	for i := 0; i < len(batches); i += maxConcurrent {
		end := i + maxConcurrent
		if end > len(batches) {
			end = len(batches)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		for n := i; n < end; n++ {
			workflowID := fmt.Sprintf("%s-batch-%d", parentID, n)
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: workflowID})
			futures = append(futures, workflow.ExecuteChildWorkflow(childCtx, ReconcileBatchWorkflow, ReconcileBatchInput{Files: batches[n]}))
			progress.ChildWorkflow[n] = workflowID
		}
		for _, f := range futures {
			var res ReconcileBatchResult
			if err := f.Get(ctx, &res); err != nil {
				progress.BatchFailed++
				continue
			}
			progress.BatchesDone++
			progress.Written += res.Written
			progress.WriteFailed += len(res.WriteFailed)
			for status, n := range res.ByStatus {
				progress.ByStatus[status] += n
			}
		}
	}
}

// ReconcileBatchWorkflow reconciles each file and writes its ledger row.
// A file whose reconcile activity fails still gets a Failed row. A row
// whose write keeps failing is reported, not dropped silently.
func ReconcileBatchWorkflow(ctx workflow.Context, input ReconcileBatchInput) (ReconcileBatchResult, error) {
	result := ReconcileBatchResult{ByStatus: map[models.Status]int{}}
	ctx = workflow.WithActivityOptions(ctx, shortActivityOptions())

	futures := make([]workflow.Future, len(input.Files))
	for i, path := range input.Files {
		futures[i] = workflow.ExecuteActivity(ctx, "ReconcileFileActivity", activities.ReconcileFileInput{Path: path})
	}

	writeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})
	for i, f := range futures {
		var out activities.ReconcileFileOutput
		if err := f.Get(ctx, &out); err != nil {
			workflow.GetLogger(ctx).Warn("reconcile failed, recording failed row", "file", input.Files[i], "error", err)
			out.Row = reconcile.FailedFileRow(input.Files[i], err.Error())
		}
		if err := workflow.ExecuteActivity(writeCtx, "WriteLedgerRowActivity", activities.WriteLedgerRowInput{Row: out.Row}).Get(ctx, nil); err != nil {
			workflow.GetLogger(ctx).Error("ledger write failed", "file", input.Files[i], "error", err)
			result.WriteFailed = append(result.WriteFailed, input.Files[i])
			continue
		}
		result.Written++
		result.ByStatus[out.Row.Status]++
	}
	return result, nil
}

// CompletenessWorkflow recomputes the summary table and/or exports it.
// Start it with CompletenessWorkflowID so runs never overlap.
func CompletenessWorkflow(ctx workflow.Context, input CompletenessInput) (CompletenessResult, error) {
	var result CompletenessResult
	ctx = workflow.WithActivityOptions(ctx, longActivityOptions())
	if input.Recompute {
		var out activities.RecomputeCompletenessOutput
		if err := workflow.ExecuteActivity(ctx, "RecomputeCompletenessActivity").Get(ctx, &out); err != nil {
			return result, err
		}
		result.Rows = out.Rows
	}
	if input.Export {
		var out activities.ExportCompletenessOutput
		if err := workflow.ExecuteActivity(ctx, "ExportCompletenessActivity", activities.ExportCompletenessInput{Targets: input.Targets}).Get(ctx, &out); err != nil {
			return result, err
		}
		result.Journals = out.Journals
	}
	return result, nil
}

// LoadClassicWorkflow replaces the classic reference tables.
func LoadClassicWorkflow(ctx workflow.Context) (activities.LoadClassicOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, longActivityOptions())
	var out activities.LoadClassicOutput
	err := workflow.ExecuteActivity(ctx, "LoadClassicActivity").Get(ctx, &out)
	return out, err
}

func newProgress() RunProgress {
	return RunProgress{ByStatus: map[models.Status]int{}, ChildWorkflow: map[int]string{}}
}
