package aggregator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/devicelab-dev/ui-coverage/pkg/core"
)

// document is the on-disk shape shared by every process writing the same
// coverage file.
type document struct {
	Records      map[string]*Record  `json:"records"`
	TestCoverage map[string][]string `json:"testCoverage"`
	Aliases      map[string]string   `json:"aliases,omitempty"` // folded key -> canonical key
	LastUpdated  int64               `json:"lastUpdated"`
	ClearedAt    int64               `json:"clearedAt,omitempty"`
}

// readDocument loads a coverage file. A missing file returns an error
// satisfying errors.Is(err, fs.ErrNotExist).
func readDocument(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, core.ErrCorruptState.WithCause(err).WithDetails(map[string]interface{}{"path": path})
	}
	for key, rec := range doc.Records {
		if rec == nil {
			delete(doc.Records, key)
		}
	}
	return &doc, nil
}

// writeDocument writes to a temp file in the same directory and renames it
// over path, so readers never observe a partial document.
func writeDocument(path string, doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal coverage state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
