package workflows

import "compstat/internal/models"

type HarvestInput struct {
	LogDir               string `json:"log_dir,omitempty"`
	Publisher            string `json:"publisher,omitempty"`
	Latest               bool   `json:"latest,omitempty"`
	BatchSize            int    `json:"batch_size"`
	MaxConcurrentBatches int    `json:"max_concurrent_batches"`
}

type RetryInput struct {
	MatchTypes           []string `json:"match_types,omitempty"`
	BatchSize            int      `json:"batch_size"`
	MaxConcurrentBatches int      `json:"max_concurrent_batches"`
}

type ReconcileBatchInput struct {
	Files []string `json:"files"`
}

type ReconcileBatchResult struct {
	Written     int                   `json:"written"`
	WriteFailed []string              `json:"write_failed,omitempty"`
	ByStatus    map[models.Status]int `json:"by_status"`
}

// RunProgress is served by the GetProgress query and returned on completion.
type RunProgress struct {
	Logs          int                   `json:"logs"`
	Files         int                   `json:"files"`
	Batches       int                   `json:"batches"`
	BatchesDone   int                   `json:"batches_done"`
	BatchFailed   int                   `json:"batches_failed"`
	Written       int                   `json:"written"`
	WriteFailed   int                   `json:"write_failed"`
	ByStatus      map[models.Status]int `json:"by_status"`
	ChildWorkflow map[int]string        `json:"child_workflow"`
}

type CompletenessInput struct {
	Recompute bool     `json:"recompute"`
	Export    bool     `json:"export"`
	Targets   []string `json:"targets,omitempty"`
}

type CompletenessResult struct {
	Rows     int `json:"rows"`
	Journals int `json:"journals"`
}
