package filecsv

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"content-pipeline/domain/model"
	"content-pipeline/domain/repository"
	"content-pipeline/infrastructure/logger"
)

// SourceFile reads the source list from a local CSV file with a header row
// (label,type,url_or_key,active,platform). The file is re-read on every call
// so edits apply to the next run.
type SourceFile struct {
	path string
}

func NewSourceFile(path string) *SourceFile {
	return &SourceFile{path: path}
}

func (f *SourceFile) ListSources(_ context.Context) ([]model.Source, error) {
	file, err := os.Open(f.path)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while open file")
		return nil, err
	}
	defer file.Close()
	return ReadSources(file)
}

func ReadSources(r io.Reader) ([]model.Source, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []model.Source{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF")))
	}

	out := []model.Source{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		record := map[string]string{}
		for i, name := range header {
			if i < len(row) && name != "" {
				record[name] = strings.TrimSpace(row[i])
			}
		}
		raw, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		var src model.Source
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, src)
	}
	return out, nil
}

type overrideSources struct {
	repository.IRecordStore
	sources repository.ISourceStore
}

func (o overrideSources) ListSources(ctx context.Context) ([]model.Source, error) {
	return o.sources.ListSources(ctx)
}

// OverrideSources serves sources from src and everything else from store.
func OverrideSources(store repository.IRecordStore, src repository.ISourceStore) repository.IRecordStore {
	return overrideSources{IRecordStore: store, sources: src}
}
