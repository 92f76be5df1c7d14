package cortex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a Cortex job.
type JobStatus int

const (
	StatusUnknown JobStatus = iota
	StatusWaiting
	StatusInProgress
	StatusSuccess
	StatusFailure
)

// ParseJobStatus maps the engine's status vocabulary onto JobStatus.
// Values the engine may add later map to StatusUnknown.
func ParseJobStatus(s string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "waiting":
		return StatusWaiting
	case "inprogress", "in_progress":
		return StatusInProgress
	case "success":
		return StatusSuccess
	case "failure":
		return StatusFailure
	default:
		return StatusUnknown
	}
}

func (s JobStatus) String() string {
	switch s {
	case StatusWaiting:
		return "Waiting"
	case StatusInProgress:
		return "InProgress"
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further polling is needed.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// MarshalJSON writes the engine's string form.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the engine's string form.
func (s *JobStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseJobStatus(raw)
	return nil
}

// Analyzer is an entry of the engine's enabled analyzer catalog.
type Analyzer struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version,omitempty"`
	Description  string   `json:"description,omitempty"`
	DataTypeList []string `json:"dataTypeList,omitempty"`
	WorkerDefID  string   `json:"workerDefinitionId,omitempty"`
	MaxTLP       int      `json:"maxTlp,omitempty"`
}

// Supports reports whether the analyzer declares the data type. An empty list means unrestricted.
func (a Analyzer) Supports(dataType string) bool {
	if len(a.DataTypeList) == 0 {
		return true
	}
	for _, dt := range a.DataTypeList {
		if strings.EqualFold(dt, dataType) {
			return true
		}
	}
	return false
}

// AnalyzerRequest is the body of a run-analyzer call.
type AnalyzerRequest struct {
	Data     string `json:"data"`
	DataType string `json:"dataType"`
	TLP      int    `json:"tlp"`
	Message  string `json:"message"`
	// Force asks the engine to ignore cached results; it travels as a query parameter.
	Force bool `json:"-"`
}

// Job is the engine's view of a submitted analysis.
type Job struct {
	ID           string    `json:"id"`
	AnalyzerID   string    `json:"analyzerId,omitempty"`
	AnalyzerName string    `json:"analyzerName,omitempty"`
	Status       JobStatus `json:"status"`
	Data         string    `json:"data,omitempty"`
	DataType     string    `json:"dataType,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    int64     `json:"createdAt,omitempty"`
}

// Created returns the job creation time. The engine reports epoch milliseconds.
func (j Job) Created() time.Time {
	if j.CreatedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(j.CreatedAt)
}

// Report is the job report. Full is forwarded verbatim; its shape depends on the analyzer.
type Report struct {
	JobID        string          `json:"-"`
	Success      bool            `json:"success"`
	Full         json.RawMessage `json:"full,omitempty"`
	Summary      json.RawMessage `json:"summary,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// FullValue decodes Full into a generic value for templating. A missing full report yields nil.
// Numbers are kept as json.Number so large integers survive re-encoding.
func (r *Report) FullValue() (interface{}, error) {
	if r == nil || len(r.Full) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(r.Full))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after full report")
	}
	return v, nil
}

// jobReportEnvelope is the response of GET /api/job/{id}/report.
type jobReportEnvelope struct {
	Job
	Report Report `json:"report"`
}
