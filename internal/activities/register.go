package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListHarvestLogsActivity)
	w.RegisterActivity(a.ReadHarvestLogActivity)
	w.RegisterActivity(a.ReconcileFileActivity)
	w.RegisterActivity(a.WriteLedgerRowActivity)
	w.RegisterActivity(a.ListRetryFilesActivity)
	w.RegisterActivity(a.LoadClassicActivity)
	w.RegisterActivity(a.RecomputeCompletenessActivity)
	w.RegisterActivity(a.ExportCompletenessActivity)
}
