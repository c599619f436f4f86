package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m3rciful/shopbot/core/logger"

	"gopkg.in/yaml.v3"
)

// Save writes the current document to path, keeping the format implied by
// the extension: .json gets indented JSON, anything else YAML. The file is
// replaced atomically.
func (c *Catalog) Save(path string) error {
	start := time.Now()
	doc := c.Snapshot()
	data, err := Encode(doc, path)
	if err != nil {
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		logger.LogEvent(context.Background(), logger.SVCCatalog, slog.LevelError, "catalog.save",
			slog.String("status", "fail"),
			slog.String("path", path),
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.LogEvent(context.Background(), logger.SVCCatalog, slog.LevelInfo, "catalog.save",
		slog.String("status", "ok"),
		slog.String("path", path),
		slog.Int("count", countProducts(doc)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Encode renders doc in the format selected by the extension of path.
func Encode(doc Document, path string) ([]byte, error) {
	var buf bytes.Buffer
	if strings.EqualFold(filepath.Ext(path), ".json") {
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("catalog: encode json: %w", err)
		}
		return buf.Bytes(), nil
	}
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("catalog: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("catalog: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("catalog: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("catalog: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("catalog: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("catalog: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("catalog: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("catalog: replace %s: %w", path, err)
	}
	return nil
}

func countProducts(doc Document) int {
	n := 0
	for _, products := range doc.Products {
		n += len(products)
	}
	return n
}
