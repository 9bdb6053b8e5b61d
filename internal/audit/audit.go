package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ReportWriter saves a JSON summary of each import run to a directory so the
// outcome of a migration can be kept alongside the legacy extracts.
type ReportWriter struct {
	Dir string
}

func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{Dir: dir}
}

// Write saves report as <runID>.json and returns the file path. A blank runID
// gets a fresh UUID.
func (w *ReportWriter) Write(runID string, report any) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create report directory")
	}

	if runID == "" {
		runID = uuid.NewString()
	}
	path := filepath.Join(w.Dir, runID+".json")

	payload := struct {
		RunID     string    `json:"run_id"`
		WrittenAt time.Time `json:"written_at"`
		Report    any       `json:"report"`
	}{RunID: runID, WrittenAt: time.Now().UTC(), Report: report}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal import report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write import report")
	}
	return path, nil
}
