package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gridcast/pkg/model"
	"github.com/raterudder/gridcast/pkg/types"
)

// FileProvider implements Database on the local filesystem. The bundle is a
// single artifact file and forecast history is a JSON-lines file.
type FileProvider struct {
	modelPath   string
	historyPath string

	// guards appends to the history file
	mu sync.Mutex
}

// NewFileProvider returns a provider storing the bundle at modelPath. An empty
// historyPath disables forecast history.
func NewFileProvider(modelPath, historyPath string) *FileProvider {
	return &FileProvider{
		modelPath:   modelPath,
		historyPath: historyPath,
	}
}

func configuredFile() *FileProvider {
	modelPath := lflag.String("model-path", "models/best_model.json.gz", "Path of the trained model artifact")
	historyPath := lflag.String("forecast-history-path", "models/forecast_history.jsonl", "Path of the forecast history file, empty disables history")

	f := &FileProvider{}
	lflag.Do(func() {
		f.modelPath = *modelPath
		f.historyPath = *historyPath
	})
	return f
}

// Validate checks if the provider is properly configured.
func (f *FileProvider) Validate() error {
	if f.modelPath == "" {
		return errors.New("model-path is required")
	}
	return nil
}

// SaveBundle writes the bundle to a temporary file next to the artifact and
// renames it into place, so a reader sees either the old or the new bundle.
func (f *FileProvider) SaveBundle(ctx context.Context, bundle *model.Bundle) error {
	dir := filepath.Dir(f.modelPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.modelPath)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := model.Encode(tmp, bundle); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.modelPath); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}
	return nil
}

// LoadBundle reads the artifact from disk.
func (f *FileProvider) LoadBundle(ctx context.Context) (*model.Bundle, error) {
	file, err := os.Open(f.modelPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", model.ErrModelNotFound, f.modelPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer file.Close()
	return model.Decode(file)
}

// InsertForecast appends the run to the history file.
func (f *FileProvider) InsertForecast(ctx context.Context, run types.ForecastRun) error {
	if f.historyPath == "" {
		return nil
	}
	line, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast run: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.historyPath), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	file, err := os.OpenFile(f.historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	if _, err := file.Write(line); err != nil {
		file.Close()
		return fmt.Errorf("failed to write forecast run: %w", err)
	}
	return file.Close()
}

// GetForecastHistory returns runs created in [start, end), oldest first.
func (f *FileProvider) GetForecastHistory(ctx context.Context, start, end time.Time) ([]types.ForecastRun, error) {
	if f.historyPath == "" {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.historyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	var runs []types.ForecastRun
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var run types.ForecastRun
		if err := json.Unmarshal(scanner.Bytes(), &run); err != nil {
			return nil, fmt.Errorf("failed to unmarshal forecast run on line %d: %w", line, err)
		}
		runs = append(runs, run)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	return inRange(runs, start, end), nil
}

// Close is a no-op for files.
func (f *FileProvider) Close() error {
	return nil
}
