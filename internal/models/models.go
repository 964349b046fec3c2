package models

import "time"

// Status is the ledger-level outcome of reconciling one metadata file.
type Status string

const (
	StatusMatched   Status = "Matched"
	StatusUnmatched Status = "Unmatched"
	StatusNoIndex   Status = "NoIndex"
	StatusFailed    Status = "Failed"
)

// LedgerRow is one reconciliation outcome, unique per DOI.
type LedgerRow struct {
	ID                int64             `json:"masterid"`
	HarvestFilepath   string            `json:"harvest_filepath"`
	DOI               string            `json:"master_doi"`
	ISSNs             map[string]string `json:"issns"`
	BibData           map[string]any    `json:"master_bibdata"`
	Discrepancies     map[string]string `json:"classic_match"`
	Status            Status            `json:"status"`
	MatchType         string            `json:"matchtype"`
	Identifier        string            `json:"bibcode_meta,omitempty"`
	ClassicIdentifier string            `json:"bibcode_classic,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	CreatedAt         time.Time         `json:"created"`
	UpdatedAt         time.Time         `json:"updated"`
}

// VolumeCount is one (status, match type) tally inside a volume.
type VolumeCount struct {
	Status    Status `json:"status"`
	MatchType string `json:"matchtype"`
	Count     int    `json:"count"`
}

// VolumeGroup is the raw ledger tally for one journal volume key as stored
// in identifiers, before label normalisation.
type VolumeGroup struct {
	VolumeKey string
	Status    Status
	MatchType string
	Count     int
}

// SummaryRow is the completeness of one journal volume.
type SummaryRow struct {
	ID               int64         `json:"summaryid"`
	Journal          string        `json:"bibstem"`
	Volume           string        `json:"volume"`
	PaperCount       int           `json:"paper_count"`
	CompleteFraction float64       `json:"complete_fraction"`
	CompleteDetails  []VolumeCount `json:"complete_details"`
	CreatedAt        time.Time     `json:"created"`
}
