package misc

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Function variables for testing injection.
var (
	createTemp = os.CreateTemp
	rename     = os.Rename
)

// Save writes doc to path in the given format, replacing any existing file.
// The parent directory must exist. The write goes through a temporary file in
// the same directory that is renamed over path, so readers never observe a
// partial document.
func Save(path string, doc Document, format Format, opts ...SaveOption) error {
	cfg := newSaveConfig(opts)
	err := writeFileAtomic(path, cfg.perm, func(w io.Writer) error {
		return encode(w, doc, format, cfg)
	})
	if err != nil {
		cfg.logger.Debug("save failed", "path", path, "format", format.String(), "error", err)
		return fmt.Errorf("misc: save %s: %w", path, err)
	}
	cfg.logger.Debug("document saved", "path", path, "format", format.String(), "keys", len(doc))
	return nil
}

// Load reads the document stored at path in the given format.
// A missing path yields an error matching ErrNotFound.
func Load(path string, format Format, opts ...LoadOption) (Document, error) {
	cfg := newLoadConfig(opts)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("misc: load %s: %w", path, err)
	}
	defer f.Close()
	doc, err := decode(bufio.NewReader(f), format, cfg)
	if err != nil {
		cfg.logger.Debug("load failed", "path", path, "format", format.String(), "error", err)
		return nil, fmt.Errorf("misc: load %s: %w", path, err)
	}
	cfg.logger.Debug("document loaded", "path", path, "format", format.String(), "keys", len(doc))
	return doc, nil
}

func SaveJSON(path string, doc Document, opts ...SaveOption) error {
	return Save(path, doc, FormatJSON, opts...)
}

func LoadJSON(path string, opts ...LoadOption) (Document, error) {
	return Load(path, FormatJSON, opts...)
}

func SaveBinary(path string, doc Document, opts ...SaveOption) error {
	return Save(path, doc, FormatBinary, opts...)
}

func LoadBinary(path string, opts ...LoadOption) (Document, error) {
	return Load(path, FormatBinary, opts...)
}

// WriteText writes contents to path, creating parent directories as needed.
func WriteText(path, contents string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("misc: write %s: %w", path, err)
	}
	err := writeFileAtomic(path, 0o644, func(w io.Writer) error {
		_, err := io.WriteString(w, contents)
		return err
	})
	if err != nil {
		return fmt.Errorf("misc: write %s: %w", path, err)
	}
	return nil
}

// ReadText returns the contents of path.
func ReadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("misc: read %s: %w", path, err)
	}
	return string(b), nil
}

// writeFileAtomic writes through a temp file next to path and renames it into
// place. The temp file is removed on every failure path.
func writeFileAtomic(path string, perm fs.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := createTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	buf := bufio.NewWriter(tmp)
	if err := write(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := rename(tmpName, path); err != nil {
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	tmpName = ""
	return nil
}
