package exporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts"
)

// Envelope wraps JSON output with metadata.
type Envelope struct {
	Metadata map[string]interface{} `json:"metadata"`
	Data     interface{}            `json:"data"`
}

// NewEnvelope stamps data with the payload format version, the generation
// time and the given extra metadata.
func NewEnvelope(data interface{}, meta map[string]interface{}) Envelope {
	m := map[string]interface{}{
		"format":       contracts.DataFormatVersion,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		m[k] = v
	}
	return Envelope{Metadata: m, Data: data}
}

// WriteJSON writes an indented envelope to path.
func WriteJSON(path string, data interface{}, meta map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("create output directory", err).WithContext("path", path)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("create json file", err).WithContext("path", path)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(NewEnvelope(data, meta)); err != nil {
		return errors.NewStorageError("encode json", err).WithContext("path", path)
	}
	return nil
}
