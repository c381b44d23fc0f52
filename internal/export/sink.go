package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	appLog "downtowncal/internal/log"
)

const outputPerm = 0o644

// Sink writes output files into one directory. Every file is replaced
// atomically: content goes to a temp file in the same directory which is then
// renamed over the target, so readers never see a half-written file.
type Sink struct {
	fs  afero.Fs
	dir string
}

// NewSink returns a Sink rooted at dir on fs.
func NewSink(fs afero.Fs, dir string) *Sink {
	if dir == "" {
		dir = "."
	}
	return &Sink{fs: fs, dir: dir}
}

// Path returns where name is written.
func (s *Sink) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

// WriteFile replaces name with whatever write produces and returns the final
// path.
func (s *Sink) WriteFile(name string, write func(io.Writer) error) (string, error) {
	path := s.Path(name)
	dir := filepath.Dir(path)

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: mkdir %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("export: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = s.fs.Remove(tmpName)
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("export: flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("export: close %s: %w", path, err)
	}
	if err := s.fs.Chmod(tmpName, outputPerm); err != nil {
		return "", fmt.Errorf("export: chmod %s: %w", path, err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("export: rename %s: %w", path, err)
	}

	appLog.Debug("export wrote file", "path", path)
	return path, nil
}

// WriteJSON writes v as indented JSON. HTML characters are kept literal.
func (s *Sink) WriteJSON(name string, v any) (string, error) {
	return s.WriteFile(name, func(w io.Writer) error {
		return EncodeJSON(w, v)
	})
}

// WriteCSV writes a header row followed by rows.
func (s *Sink) WriteCSV(name string, header []string, rows [][]string) (string, error) {
	return s.WriteFile(name, func(w io.Writer) error {
		return EncodeCSV(w, header, rows)
	})
}

// EncodeJSON is the JSON encoding shared by files and HTTP responses.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// EncodeCSV writes header and rows with encoding/csv quoting.
func EncodeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if header != nil {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
