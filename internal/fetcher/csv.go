// Package fetcher streams rows out of the tabular files census data ships in.
package fetcher

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const utf8BOM = "\ufeff"

// CSVOptions controls how a census CSV export is read.
type CSVOptions struct {
	Delimiter  rune            // 0 means ','
	HasHeader  bool            // the first record names the columns
	HeaderCh   chan<- []string // receives the column names when HasHeader is set
	LazyQuotes bool            // tolerate stray quotes inside district names
	TrimSpace  bool
	SkipBlank  bool // drop records whose fields are all empty, as trailing export rows are
}

// StreamCSV sends the records of a census CSV export on the row channel.
// A leading UTF-8 byte order mark is dropped and rows may carry differing
// field counts. The caller must drain the row channel; both channels close
// once the input is exhausted, a record fails to parse or ctx is done.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(skipBOM(r))
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		header := opts.HasHeader
		for line := 1; ; line++ {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrapf(err, "fetcher: census csv stopped before record %d", line)
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "fetcher: parse census csv record %d", line)
				return
			}
			if opts.TrimSpace {
				for i := range record {
					record[i] = strings.TrimSpace(record[i])
				}
			}

			var out chan<- []string = rowCh
			if header {
				header = false
				if opts.HeaderCh == nil {
					continue
				}
				out = opts.HeaderCh
			} else if opts.SkipBlank && blank(record) {
				continue
			}

			select {
			case out <- record:
			case <-ctx.Done():
				errCh <- eris.Wrapf(ctx.Err(), "fetcher: census csv stopped at record %d", line)
				return
			}
		}
	}()

	return rowCh, errCh
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
