package collect

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/reillywatson/dorastats/internal/snapshot"
)

// Export is the dora.json document: the snapshot collections plus the
// derived tables they were computed from
type Export struct {
	*snapshot.Store
	Windows     []DeployWindow     `json:"derived_deploy_window"`
	LeadTimes   []PRLeadTime       `json:"derived_pr_lead_time"`
	Failures    []DeployFailure    `json:"derived_cfr_per_deploy"`
	RunID       string             `json:"etl_run_id"`
	GeneratedAt snapshot.Timestamp `json:"generated_at_utc"`
}

// Encode writes the export indented by four spaces
func (e *Export) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// WriteFile writes the export to path. Readers never observe a partially
// written file.
func (e *Export) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dora-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := e.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
