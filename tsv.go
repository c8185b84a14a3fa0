package misc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
)

// TSVKeyField is the header of the key column written by WriteTSV.
const TSVKeyField = "cluster_id"

// WriteTSV writes data as a two-column table: a header naming TSVKeyField
// and field, then one "<key>\t<value>" row per entry in ascending key order.
func WriteTSV(path, field string, data map[int]string) error {
	if err := checkTSVCell(field); err != nil {
		return fmt.Errorf("misc: write %s: field: %w", path, err)
	}
	keys := make([]int, 0, len(data))
	for k, v := range data {
		if err := checkTSVCell(v); err != nil {
			return fmt.Errorf("misc: write %s: key %d: %w", path, k, err)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	err := writeFileAtomic(path, 0o644, func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", TSVKeyField, field); err != nil {
			return err
		}
		for _, k := range keys {
			if _, err := fmt.Fprintf(w, "%d\t%s\n", k, data[k]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("misc: write %s: %w", path, err)
	}
	return nil
}

// ReadTSV reads a table written by WriteTSV and returns the name of its value
// column and its rows. A missing file yields an empty field and an empty map.
func ReadTSV(path string) (field string, data map[int]string, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", map[int]string{}, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("misc: read %s: %w", path, err)
	}
	defer f.Close()
	field, data, err = parseTSV(f)
	if err != nil {
		return "", nil, fmt.Errorf("misc: read %s: %w", path, err)
	}
	return field, data, nil
}

func parseTSV(r io.Reader) (string, map[int]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	data := map[int]string{}
	field := ""
	haveHeader := false
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSuffix(sc.Text(), "\r")
		if text == "" {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) != 2 {
			return "", nil, fmt.Errorf("%w: line %d has %d columns, want 2", ErrInvalidTSV, line, len(cols))
		}
		if !haveHeader {
			if cols[0] != TSVKeyField {
				return "", nil, fmt.Errorf("%w: line %d: header starts with %q, want %q", ErrInvalidTSV, line, cols[0], TSVKeyField)
			}
			field = cols[1]
			haveHeader = true
			continue
		}
		k, err := strconv.Atoi(cols[0])
		if err != nil {
			return "", nil, fmt.Errorf("%w: line %d: key %q is not an integer", ErrInvalidTSV, line, cols[0])
		}
		if _, dup := data[k]; dup {
			return "", nil, fmt.Errorf("%w: line %d: duplicate key %d", ErrInvalidTSV, line, k)
		}
		data[k] = cols[1]
	}
	if err := sc.Err(); err != nil {
		return "", nil, err
	}
	return field, data, nil
}

func checkTSVCell(s string) error {
	if strings.ContainsAny(s, "\t\r\n") {
		return fmt.Errorf("%w: %q contains a tab or line break", ErrInvalidTSV, s)
	}
	return nil
}
