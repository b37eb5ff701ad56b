package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	m "strykr.dev/pkg/strykr/internal/model"
	"strykr.dev/pkg/strykr/pkg"
)

// ReportStore persists run reports for the reporter collaborator and for
// incremental tooling.
type ReportStore interface {
	SaveReport(ctx context.Context, dir m.Path, report m.RunReport) error
	LoadReport(ctx context.Context, dir m.Path) (m.RunReport, error)

	// NewMutantSpill opens the per-mutant record spill for a run.
	NewMutantSpill(dir m.Path) (pkg.FileSpill[m.MutantReport], error)
}

const (
	reportFileName = "report.yaml"
	spillFileName  = "mutants.gob"
)

// YAMLReportStore writes the session summary as YAML and the per-mutant
// records through a gob spill.
type YAMLReportStore struct{}

// NewReportStore constructs a YAMLReportStore.
func NewReportStore() *YAMLReportStore {
	return &YAMLReportStore{}
}

// SaveReport implements ReportStore.
func (s *YAMLReportStore) SaveReport(ctx context.Context, dir m.Path, report m.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(string(dir), 0o750); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	path := filepath.Join(string(dir), reportFileName)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}

	return nil
}

// LoadReport implements ReportStore.
func (s *YAMLReportStore) LoadReport(ctx context.Context, dir m.Path) (m.RunReport, error) {
	if err := ctx.Err(); err != nil {
		return m.RunReport{}, err
	}

	path := filepath.Join(string(dir), reportFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return m.RunReport{}, fmt.Errorf("read report %s: %w", path, err)
	}

	var report m.RunReport

	if err := yaml.Unmarshal(data, &report); err != nil {
		return m.RunReport{}, fmt.Errorf("unmarshal report %s: %w", path, err)
	}

	return report, nil
}

// NewMutantSpill implements ReportStore.
func (s *YAMLReportStore) NewMutantSpill(dir m.Path) (pkg.FileSpill[m.MutantReport], error) {
	if err := os.MkdirAll(string(dir), 0o750); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}

	return pkg.NewFileSpill[m.MutantReport](filepath.Join(string(dir), spillFileName))
}
