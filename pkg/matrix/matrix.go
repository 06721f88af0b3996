package matrix

import (
	"encoding/json"
	"fmt"
	"os"
)

// Entry is one row of the archive availability matrix: which partition
// granularities and intervals exist for a (market, data type) pair, plus
// optional path templates overriding the default archive layout.
type Entry struct {
	Market          string   `json:"market"`
	DataType        string   `json:"data_type"` // archive folder spelling, e.g. "liquidationSnapshot"
	Intervals       []string `json:"intervals,omitempty"`
	Partitions      []string `json:"partitions"`
	URLPattern      string   `json:"url_pattern,omitempty"`
	FilenamePattern string   `json:"filename_pattern,omitempty"`
}

// Matrix is the declarative catalog of what the archive publishes.
// Loaded once per run and immutable afterwards.
type Matrix struct {
	Entries []Entry `json:"entries"`
}

// Len returns the number of catalog rows.
func (m *Matrix) Len() int {
	return len(m.Entries)
}

// Load reads a matrix from a JSON file. A missing or unparseable file is a
// configuration error; row-level problems are left for the task resolver,
// which skips bad rows with a warning instead of failing the run.
func Load(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix file %s: %w", path, err)
	}

	var m Matrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse matrix file %s: %w", path, err)
	}

	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("matrix file %s contains no entries", path)
	}

	return &m, nil
}
