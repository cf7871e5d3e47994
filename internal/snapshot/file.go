package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/wonny/optionrank/internal/contracts"
)

// FileSource reads <dir>/<SYMBOL>.json; used by the one-shot rank command and local runs
type FileSource struct {
	dir string
}

// NewFileSource creates a file snapshot source rooted at dir
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Fetch implements contracts.SnapshotSource
func (s *FileSource) Fetch(ctx context.Context, symbol string) (*contracts.ChainSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(filepath.Join(s.dir, symbol+".json"), symbol)
}

// LoadFile parses one chain JSON file. An empty symbol takes the file's own.
func LoadFile(path, symbol string) (*contracts.ChainSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", contracts.ErrSnapshotNotFound, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", contracts.ErrDataUnavailable, path, err)
	}

	var payload chainPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", contracts.ErrDataUnavailable, path, err)
	}

	if symbol == "" {
		symbol, err = contracts.NormalizeSymbol(payload.Symbol)
		if err != nil {
			return nil, err
		}
	}
	return payload.toChain(symbol)
}
