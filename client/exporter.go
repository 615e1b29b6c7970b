package client

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"componentlab/api/export"
	"componentlab/api/models"
)

type ExportSource interface {
	GetExportData(ctx context.Context) ([]models.ExportRecord, error)
}

// Exporter downloads every interaction and saves it as a dated file in Dir.
type Exporter struct {
	source ExportSource
	Dir    string
	now    func() time.Time
}

func NewExporter(source ExportSource, dir string) *Exporter {
	return &Exporter{source: source, Dir: dir, now: time.Now}
}

// CSV writes estadisticas-componentes-<date>.csv and returns its path.
// An empty export returns export.ErrNoData and writes nothing.
func (e *Exporter) CSV(ctx context.Context) (string, error) {
	records, err := e.source.GetExportData(ctx)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := export.CSV(&buf, records); err != nil {
		return "", err
	}
	return e.save("csv", buf.Bytes())
}

// JSON writes estadisticas-componentes-<date>.json and returns its path.
func (e *Exporter) JSON(ctx context.Context) (string, error) {
	records, err := e.source.GetExportData(ctx)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := export.JSON(&buf, export.Envelope{Success: true, Data: records}); err != nil {
		return "", err
	}
	return e.save("json", buf.Bytes())
}

func (e *Exporter) save(ext string, data []byte) (string, error) {
	path := filepath.Join(e.Dir, export.Filename(e.now(), ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
