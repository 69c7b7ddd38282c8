package dataset

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/census-insights/internal/config"
	"github.com/sells-group/census-insights/internal/fetcher"
)

// Source is a remote copy of one input file.
type Source struct {
	URL    string
	Target string
}

// FetchResult reports what Fetch did for one source.
type FetchResult struct {
	Target  string `json:"target"`
	URL     string `json:"url"`
	Changed bool   `json:"changed"`
	Bytes   int64  `json:"bytes"`
}

// SourcesFromConfig pairs each configured URL with its file under the data
// directory. Inputs without a URL are left out.
func SourcesFromConfig(cfg config.DataConfig) []Source {
	var out []Source
	for _, s := range []Source{
		{cfg.DistrictURL, cfg.DistrictFile},
		{cfg.HousingURL, cfg.HousingFile},
		{cfg.MappingURL, cfg.MappingFile},
	} {
		if s.URL != "" {
			out = append(out, Source{URL: s.URL, Target: filepath.Join(cfg.Dir, s.Target)})
		}
	}
	return out
}

// Fetch downloads every source concurrently. The server's ETag is stored next
// to each target; a later fetch skips files the server reports unchanged
// unless force is set. ZIP downloads are unpacked into the target.
func Fetch(ctx context.Context, f fetcher.Fetcher, sources []Source, force bool) ([]FetchResult, error) {
	results := make([]FetchResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)

	for i, src := range sources {
		g.Go(func() error {
			res, err := fetchOne(gctx, f, src, force)
			if err != nil {
				return eris.Wrapf(err, "dataset: fetch %s", filepath.Base(src.Target))
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func fetchOne(ctx context.Context, f fetcher.Fetcher, src Source, force bool) (FetchResult, error) {
	res := FetchResult{Target: src.Target, URL: src.URL}
	if err := os.MkdirAll(filepath.Dir(src.Target), 0o755); err != nil {
		return res, eris.Wrap(err, "create data directory")
	}

	etagPath := src.Target + ".etag"
	var etag string
	if !force && fileExists(src.Target) {
		if b, err := os.ReadFile(etagPath); err == nil {
			etag = strings.TrimSpace(string(b))
		}
	}

	body, newTag, changed, err := f.DownloadIfChanged(ctx, src.URL, etag)
	if err != nil {
		return res, err
	}
	if !changed {
		zap.L().Info("dataset: source unchanged", zap.String("target", src.Target))
		return res, nil
	}
	defer body.Close() //nolint:errcheck

	if zipped, member := zipSource(src.URL); zipped {
		archive := src.Target + ".zip"
		n, err := fetcher.WriteFileAtomic(archive, body)
		if err != nil {
			return res, err
		}
		defer os.Remove(archive) //nolint:errcheck
		if member != "" {
			err = fetcher.ExtractZIPFile(archive, member, src.Target)
		} else {
			err = fetcher.ExtractZIPSingle(archive, src.Target)
		}
		if err != nil {
			return res, err
		}
		res.Bytes = n
	} else {
		n, err := fetcher.WriteFileAtomic(src.Target, body)
		if err != nil {
			return res, err
		}
		res.Bytes = n
	}
	res.Changed = true

	if newTag != "" {
		if err := os.WriteFile(etagPath, []byte(newTag), 0o644); err != nil {
			return res, eris.Wrap(err, "write etag")
		}
	}

	zap.L().Info("dataset: source downloaded",
		zap.String("target", src.Target),
		zap.Int64("bytes", res.Bytes),
	)
	return res, nil
}

// zipSource reports whether raw names a ZIP archive. A URL fragment selects
// one member of a multi-file archive, e.g. ".../hlpca.zip#hlpca-colnames.csv".
func zipSource(raw string) (bool, string) {
	u, err := url.Parse(raw)
	if err != nil {
		return fetcher.IsZIP(raw), ""
	}
	return fetcher.IsZIP(path.Base(u.Path)), u.Fragment
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return !errors.Is(err, fs.ErrNotExist)
}
