package activities

import "compstat/internal/models"

type ListHarvestLogsInput struct {
	LogDir    string `json:"log_dir,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Latest    bool   `json:"latest,omitempty"`
}

type ListHarvestLogsOutput struct {
	Logs []string `json:"logs"`
}

type ReadHarvestLogInput struct {
	LogPath string `json:"log_path"`
}

type ReadHarvestLogOutput struct {
	Files []string `json:"files"`
}

type ReconcileFileInput struct {
	Path string `json:"path"`
}

type ReconcileFileOutput struct {
	Row models.LedgerRow `json:"row"`
}

type WriteLedgerRowInput struct {
	Row models.LedgerRow `json:"row"`
}

type ListRetryFilesInput struct {
	MatchTypes []string `json:"match_types"`
}

type ListRetryFilesOutput struct {
	Files []string `json:"files"`
}

type LoadClassicOutput struct {
	DOIs        int `json:"dois"`
	ISSNs       int `json:"issns"`
	Identifiers int `json:"identifiers"`
}

type RecomputeCompletenessOutput struct {
	Rows int `json:"rows"`
}

type ExportCompletenessInput struct {
	Targets []string `json:"targets,omitempty"`
}

type ExportCompletenessOutput struct {
	Journals int `json:"journals"`
}
