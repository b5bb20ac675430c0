package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileStorage is an append-only JSON-lines sink for access events.
type FileStorage struct {
	mu     sync.Mutex
	file   *os.File
	logger *zap.Logger
}

func NewFileStorage(p string, logger *zap.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0770); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0660)
	if err != nil {
		return nil, err
	}

	return &FileStorage{file: file, logger: logger}, nil
}

func (fs *FileStorage) AppendAccessEvents(_ context.Context, events []AccessEvent) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	w := bufio.NewWriter(fs.file)
	for _, e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fs.logger.Debug("access events appended", zap.Int("count", len(events)), zap.String("file", fs.file.Name()))
	return nil
}

// ListAccessEvents reads the whole file line by line, with no line length limit,
// and returns up to limit events of a link, newest first.
func (fs *FileStorage) ListAccessEvents(_ context.Context, linkID string, limit int) ([]AccessEvent, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	var matched []AccessEvent
	reader := bufio.NewReader(fs.file)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error reading file: %w", err)
		}
		if line = bytes.TrimSpace(line); len(line) > 0 {
			var e AccessEvent
			if err := json.Unmarshal(line, &e); err != nil {
				return nil, fmt.Errorf("failed to parse JSON line: %w", err)
			}
			if e.LinkID == linkID {
				matched = append(matched, e)
			}
		}
		if err != nil {
			break
		}
	}

	result := make([]AccessEvent, 0, len(matched))
	for i := len(matched) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, matched[i])
	}
	return result, nil
}

func (fs *FileStorage) Close() error {
	return fs.file.Close()
}
