// Package report flattens a finished checkout run into a publishable record
// and keeps run history in a local store.
package report

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/speedwagon-io/checkout/internal/checkout"
	"github.com/speedwagon-io/checkout/internal/result"
)

// Record is one leaf outcome: a bound comparison's result or a
// configuration that failed to prepare.
type Record struct {
	Path       string        `json:"path"`
	Identifier string        `json:"identifier,omitempty"`
	Comparison string        `json:"comparison,omitempty"`
	Data       any           `json:"data,omitempty"`
	Result     result.Result `json:"result"`
}

// Report is the publishable outcome of one checkout run.
type Report struct {
	ID        string        `json:"id"`
	Plant     string        `json:"plant"`
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   float64       `json:"elapsed_seconds"`
	Result    result.Result `json:"result"`
	Records   []Record      `json:"records"`
}

// Build flattens an already-run prepared file into a report.
func Build(plant string, pf *checkout.PreparedFile, elapsed time.Duration) *Report {
	rep := &Report{
		ID:        uuid.New().String(),
		Plant:     plant,
		Timestamp: time.Now().UTC(),
		Elapsed:   elapsed.Seconds(),
		Result:    pf.Result(),
	}

	for item := range pf.WalkComparisons() {
		switch item := item.(type) {
		case *checkout.PreparedComparison:
			rec := Record{
				Path:       strings.Join(item.Path(), "/"),
				Identifier: item.Identifier,
				Comparison: item.Comparison.Describe(),
				Data:       item.Data,
			}
			if item.Result != nil {
				rec.Result = *item.Result
			} else {
				rec.Result = result.Result{
					Severity: result.Error,
					Reason:   "comparison was never run",
				}
			}
			rep.Records = append(rep.Records, rec)
		case *checkout.FailedConfiguration:
			path := item.Config.Meta().Name
			if item.Parent != nil {
				path = strings.Join(append(item.Parent.Path(), path), "/")
			}
			rep.Records = append(rep.Records, Record{
				Path:   path,
				Result: item.Result,
			})
		}
	}
	return rep
}

func (r *Report) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func FromJSON(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
