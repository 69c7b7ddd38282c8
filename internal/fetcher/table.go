package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header row plus data rows, all as raw strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads a whole .csv or .xlsx file, choosing the parser by file
// extension. The first row is the header.
func ReadTable(ctx context.Context, path string) (*Table, error) {
	headerCh := make(chan []string, 1)

	var rowCh <-chan []string
	var errCh <-chan error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rowCh, errCh = StreamCSV(ctx, f, CSVOptions{HasHeader: true, HeaderCh: headerCh, LazyQuotes: true, SkipBlank: true})
	case ".xlsx":
		rowCh, errCh = StreamXLSX(ctx, path, XLSXOptions{HasHeader: true, HeaderCh: headerCh})
	default:
		return nil, eris.Errorf("fetcher: unsupported table format %q", ext)
	}

	t := &Table{}
	for row := range rowCh {
		t.Rows = append(t.Rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: read %s", path)
		}
	}

	select {
	case h := <-headerCh:
		t.Header = make([]string, len(h))
		for i, name := range h {
			t.Header[i] = strings.TrimSpace(name)
		}
	default:
		return nil, eris.Errorf("fetcher: %s has no header row", path)
	}
	return t, nil
}
