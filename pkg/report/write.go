package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File names inside the output directory.
const (
	JSONFile = "report.json"
	HTMLFile = "report.html"
	LCOVFile = "coverage.lcov"
)

// Options controls Write.
type Options struct {
	OutputDir string
	Formats   []Format
	Console   io.Writer // defaults to os.Stdout
	Color     bool
}

// Write renders the report in every requested format and returns the
// paths of the files written.
func Write(r *Report, opts Options) ([]string, error) {
	var written []string
	for _, f := range opts.Formats {
		switch f {
		case FormatConsole:
			w := opts.Console
			if w == nil {
				w = os.Stdout
			}
			if err := WriteConsole(w, r, ConsoleOptions{Color: opts.Color}); err != nil {
				return written, fmt.Errorf("console report: %w", err)
			}
			continue
		case FormatJSON, FormatHTML, FormatLCOV:
		default:
			return written, fmt.Errorf("unknown report format %q", f)
		}

		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return written, fmt.Errorf("create output dir: %w", err)
		}

		var (
			path string
			err  error
		)
		switch f {
		case FormatJSON:
			path = filepath.Join(opts.OutputDir, JSONFile)
			err = WriteJSON(path, r)
		case FormatHTML:
			path = filepath.Join(opts.OutputDir, HTMLFile)
			err = WriteHTML(path, r)
		case FormatLCOV:
			path = filepath.Join(opts.OutputDir, LCOVFile)
			err = atomicWrite(path, func(w io.Writer) error { return WriteLCOV(w, r) })
		}
		if err != nil {
			return written, fmt.Errorf("%s report: %w", f, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(path string, r *Report) error {
	return atomicWrite(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	})
}

// ReadJSON loads a report written by WriteJSON.
func ReadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- report path from config
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &r, nil
}

// atomicWrite writes through a temp file in the same directory and renames
// it over path, so readers never see a partial file.
func atomicWrite(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
