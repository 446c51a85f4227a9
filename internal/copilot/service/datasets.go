package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/waffles-copilot/server/internal/copilot/model"
	"github.com/waffles-copilot/server/internal/copilot/registry"
	errx "github.com/waffles-copilot/server/internal/core/error"
)

// DatasetService manages dataset uploads and the dataset registry.
type DatasetService struct {
	registry  *registry.DatasetRegistry
	uploadDir string
}

func NewDatasetService(reg *registry.DatasetRegistry, uploadDir string) *DatasetService {
	return &DatasetService{registry: reg, uploadDir: uploadDir}
}

func (s *DatasetService) ListDatasets() []model.DatasetDefinition {
	return s.registry.List()
}

// RegisterDataset stores an uploaded tabular file and appends its
// definition. Non-CSV uploads are rejected with a 400-carrying error; the
// column list is derived from the file's header row.
func (s *DatasetService) RegisterDataset(filename string, content []byte, name, description string) ([]model.DatasetDefinition, error) {
	base := filepath.Base(filename)
	if !strings.EqualFold(filepath.Ext(base), ".csv") {
		return nil, errx.New(fmt.Errorf("unsupported file %q", base), http.StatusBadRequest, "only CSV uploads are supported")
	}

	columns, err := headerColumns(content)
	if err != nil {
		return nil, errx.New(err, http.StatusBadRequest, "uploaded file is not valid CSV")
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.uploadDir, base)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("store upload %s: %w", base, err)
	}

	def := model.DatasetDefinition{
		DatabaseName:        name,
		DatabaseDescription: description,
		Columns:             columns,
		DatabasePath:        base,
		Date:                time.Now().Format("02-01-2006"),
	}
	if _, err := s.registry.Append(def); err != nil {
		return nil, err
	}
	// re-read so the returned list carries resolved paths
	return s.registry.List(), nil
}

// headerColumns reads the first CSV record and joins it with commas.
func headerColumns(content []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return "", fmt.Errorf("read header row: %w", err)
	}
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}
	return strings.Join(header, ","), nil
}
