package api

import (
	"time"

	"github.com/Veraticus/contract-sentinel/internal/engine"
	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/service"
)

type contractView struct {
	CreatedAt      time.Time  `json:"created_at"`
	LastChecked    *time.Time `json:"last_checked,omitempty"`
	LastChanged    *time.Time `json:"last_changed,omitempty"`
	ID             string     `json:"id"`
	Customer       string     `json:"customer,omitempty"`
	PriceRaw       string     `json:"price_raw,omitempty"`
	PriceSource    string     `json:"price_source,omitempty"`
	DateStart      string     `json:"date_start,omitempty"`
	DateEnd        string     `json:"date_end,omitempty"`
	URL            string     `json:"url,omitempty"`
	ObjectsHash    string     `json:"objects_hash,omitempty"`
	RequisitesHash string     `json:"requisites_hash,omitempty"`
	SheetURL       string     `json:"sheet_url,omitempty"`
	Price          float64    `json:"price"`
	Paid           float64    `json:"paid"`
	Accepted       float64    `json:"accepted"`
	Remainder      float64    `json:"remainder"`
	Stub           bool       `json:"stub"`
}

func newContractView(e *model.RegistryEntry) contractView {
	return contractView{
		CreatedAt:      e.CreatedAt,
		LastChecked:    e.LastChecked,
		LastChanged:    e.LastChanged,
		ID:             e.ID,
		Customer:       e.Customer,
		PriceRaw:       e.PriceRaw,
		PriceSource:    string(e.PriceSource),
		DateStart:      e.DateStart,
		DateEnd:        e.DateEnd,
		URL:            e.URL,
		ObjectsHash:    e.ObjectsHash,
		RequisitesHash: e.RequisitesHash,
		SheetURL:       e.SheetURL,
		Price:          e.Price,
		Paid:           e.Paid,
		Accepted:       e.Accepted,
		Remainder:      e.Price - e.Accepted,
		Stub:           e.IsStub(),
	}
}

type checkView struct {
	CheckedAt      time.Time `json:"checked_at"`
	ObjectsHash    string    `json:"objects_hash"`
	RequisitesHash string    `json:"requisites_hash"`
	Price          float64   `json:"price"`
}

type snapshotView struct {
	ChangedAt time.Time `json:"changed_at"`
	Dimension string    `json:"dimension"`
	Hash      string    `json:"hash"`
	Payload   string    `json:"payload"`
}

type resultView struct {
	ID                string            `json:"id"`
	SheetURL          string            `json:"sheet_url,omitempty"`
	Error             string            `json:"error,omitempty"`
	SyncError         string            `json:"sync_error,omitempty"`
	Warnings          []service.Warning `json:"warnings,omitempty"`
	Price             float64           `json:"price,omitempty"`
	Remainder         float64           `json:"remainder,omitempty"`
	Success           bool              `json:"success"`
	Changed           bool              `json:"changed"`
	ObjectsChanged    bool              `json:"objects_changed"`
	RequisitesChanged bool              `json:"requisites_changed"`
}

func newResultView(r engine.CheckResult) resultView {
	v := resultView{
		ID:                r.ID,
		SheetURL:          r.SheetURL,
		Warnings:          r.Warnings,
		Success:           r.Success,
		Changed:           r.Changed,
		ObjectsChanged:    r.Change.ObjectsChanged,
		RequisitesChanged: r.Change.RequisitesChanged,
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	if r.SyncErr != nil {
		v.SyncError = r.SyncErr.Error()
	}
	if r.Record != nil {
		v.Price = r.Record.Price.Value
		v.Remainder = r.Record.Remainder()
	}
	return v
}

type failedView struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type reportView struct {
	Changed    []string     `json:"changed"`
	Failed     []failedView `json:"failed"`
	SyncFailed []failedView `json:"sync_failed"`
	Summary    string       `json:"summary"`
	Processed  int          `json:"processed"`
	Skipped    int          `json:"skipped"`
	DurationMS int64        `json:"duration_ms"`
}

func newReportView(r engine.SweepReport) reportView {
	return reportView{
		Changed:    r.Changed,
		Failed:     failedViews(r.Failed),
		SyncFailed: failedViews(r.SyncFailed),
		Summary:    r.String(),
		Processed:  r.Processed,
		Skipped:    r.Skipped,
		DurationMS: r.Duration.Milliseconds(),
	}
}

func failedViews(in []engine.FailedID) []failedView {
	out := make([]failedView, 0, len(in))
	for _, f := range in {
		out = append(out, failedView{ID: f.ID, Error: f.Err.Error()})
	}
	return out
}
