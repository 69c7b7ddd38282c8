// Package dataset loads the census district table, the housing table and the
// housing column mapping into frames.
package dataset

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/census-insights/internal/config"
	"github.com/sells-group/census-insights/internal/fetcher"
	"github.com/sells-group/census-insights/internal/frame"
	"github.com/sells-group/census-insights/internal/model"
)

// Paths locates the three input files. An empty Housing path means the
// housing table (and its mapping) is not requested.
type Paths struct {
	District string
	Housing  string
	Mapping  string
}

// PathsFromConfig resolves file names against the data directory. When
// withHousing is false only the district table is requested.
func PathsFromConfig(cfg config.DataConfig, withHousing bool) Paths {
	p := Paths{District: filepath.Join(cfg.Dir, cfg.DistrictFile)}
	if withHousing {
		p.Housing = filepath.Join(cfg.Dir, cfg.HousingFile)
		p.Mapping = filepath.Join(cfg.Dir, cfg.MappingFile)
	}
	return p
}

// Bundle holds the loaded inputs. Housing and Mapping are nil when the
// housing table was not requested.
type Bundle struct {
	District *frame.Frame
	Housing  *frame.Frame
	Mapping  map[string]string
}

// CheckPaths verifies that every requested file exists and reports all of the
// missing ones together.
func CheckPaths(p Paths) error {
	var missing []string
	for _, path := range []string{p.District, p.Housing, p.Mapping} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, filepath.Base(path))
		}
	}
	if len(missing) > 0 {
		return &model.MissingInputError{Missing: missing}
	}
	return nil
}

// Load checks the inputs, then reads them concurrently. Housing columns named
// by a mapping code are renamed to the mapped description.
func Load(ctx context.Context, p Paths) (*Bundle, error) {
	if err := CheckPaths(p); err != nil {
		return nil, err
	}
	if p.Housing != "" && p.Mapping == "" {
		return nil, eris.New("dataset: housing table requested without a mapping file")
	}

	b := &Bundle{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		f, err := LoadTable(gctx, p.District)
		if err != nil {
			return err
		}
		b.District = f
		return nil
	})

	if p.Housing != "" {
		g.Go(func() error {
			f, err := LoadTable(gctx, p.Housing)
			if err != nil {
				return err
			}
			b.Housing = f
			return nil
		})
		g.Go(func() error {
			m, err := LoadMapping(p.Mapping)
			if err != nil {
				return err
			}
			b.Mapping = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if b.Housing != nil {
		renamed := make(map[string]string)
		for _, col := range b.Housing.Columns() {
			if desc, ok := b.Mapping[col]; ok {
				renamed[col] = desc
			}
		}
		b.Housing.Rename(renamed)
		zap.L().Debug("dataset: renamed housing columns", zap.Int("count", len(renamed)))
	}

	zap.L().Info("dataset: loaded",
		zap.Int("district_rows", b.District.Len()),
		zap.Int("district_columns", len(b.District.Columns())),
		zap.Bool("housing", b.Housing != nil),
	)
	return b, nil
}

// LoadMapping reads a code,description file.
func LoadMapping(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open mapping %s", path)
	}
	defer f.Close() //nolint:errcheck

	m, err := ParseMapping(f)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: parse mapping %s", path)
	}
	return m, nil
}

// ParseMapping reads one code,description pair per line. Blank lines and
// lines without a comma are skipped. Only the first comma separates the
// code; the description may contain further commas.
func ParseMapping(r io.Reader) (map[string]string, error) {
	m := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		m[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "dataset: scan mapping")
	}
	return m, nil
}

// LoadTable reads a .csv or .xlsx file into a frame.
func LoadTable(ctx context.Context, path string) (*frame.Frame, error) {
	t, err := fetcher.ReadTable(ctx, path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: load table")
	}
	f, err := FromTable(t)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: build frame from %s", filepath.Base(path))
	}
	return f, nil
}

var missingMarkers = map[string]bool{
	"": true, "NA": true, "N/A": true, "NaN": true, "nan": true, "null": true, "NULL": true, "#N/A": true, "-": true,
}

// FromTable converts raw rows into a frame. A column is numeric when every
// non-missing cell parses as a number; missing numeric cells become NaN.
// Duplicate header names get a ".N" suffix.
func FromTable(t *fetcher.Table) (*frame.Frame, error) {
	header := dedupe(t.Header)
	f := frame.New()

	for j, name := range header {
		raw := make([]string, len(t.Rows))
		numeric := true
		for i, row := range t.Rows {
			if j < len(row) {
				raw[i] = strings.TrimSpace(row[j])
			}
			if numeric && !missingMarkers[raw[i]] {
				if _, err := strconv.ParseFloat(raw[i], 64); err != nil {
					numeric = false
				}
			}
		}

		var err error
		if numeric {
			vals := make([]float64, len(raw))
			for i, s := range raw {
				if missingMarkers[s] {
					vals[i] = nan()
					continue
				}
				vals[i], _ = strconv.ParseFloat(s, 64)
			}
			err = f.AddFloat(name, vals)
		} else {
			for i, s := range raw {
				if missingMarkers[s] {
					raw[i] = ""
				}
			}
			err = f.AddString(name, raw)
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

func dedupe(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if n, ok := seen[h]; ok {
			out[i] = fmt.Sprintf("%s.%d", h, n)
			seen[h] = n + 1
			continue
		}
		seen[h] = 1
		out[i] = h
	}
	return out
}
