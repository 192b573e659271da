// Package inputs provides snapshot providers for the planning service. The
// file provider reads a JSON snapshot dropped by an external collector (home
// automation, price fetcher); it re-reads the file on every call so the
// freshest data wins without coordination.
package inputs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	coreinputs "github.com/solbatt/solbatt/core/inputs"
	"github.com/solbatt/solbatt/infra/logger"
)

// FileProvider loads snapshots from a JSON file on disk.
type FileProvider struct {
	path string
	log  logger.Logger
}

// NewFileProvider creates a provider reading from the given path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path, log: logger.New("file_provider")}
}

// Snapshot implements inputs.Provider.
func (p *FileProvider) Snapshot(ctx context.Context) (*coreinputs.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", p.path, err)
	}
	var snap coreinputs.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", p.path, err)
	}
	if len(snap.Prices) == 0 {
		return nil, fmt.Errorf("snapshot %s: empty price series", p.path)
	}
	if len(snap.Forecasts) == 0 {
		return nil, fmt.Errorf("snapshot %s: empty forecast series", p.path)
	}
	p.log.Debugw("snapshot loaded", map[string]any{
		"prices":    len(snap.Prices),
		"forecasts": len(snap.Forecasts),
	})
	return &snap, nil
}
