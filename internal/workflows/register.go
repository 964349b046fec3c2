package workflows

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker) {
	w.RegisterWorkflow(HarvestWorkflow)
	w.RegisterWorkflow(RetryWorkflow)
	w.RegisterWorkflow(ReconcileBatchWorkflow)
	w.RegisterWorkflow(CompletenessWorkflow)
	w.RegisterWorkflow(LoadClassicWorkflow)
}
