package registry

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/census-insights/internal/ml"
	"github.com/sells-group/census-insights/internal/model"
)

const (
	manifestFile = "manifest.yaml"
	modelSuffix  = ".model.json"
	scalerSuffix = ".scaler.json"
)

// Manifest indexes the artifacts written by Save. Pass identifies the Save
// call; every model and scaler file carries the same value.
type Manifest struct {
	Pass      string          `yaml:"pass"`
	TrainedAt time.Time       `yaml:"trained_at"`
	Models    []ManifestEntry `yaml:"models"`
}

// ManifestEntry describes one saved model.
type ManifestEntry struct {
	Name     string   `yaml:"name"`
	Kind     Kind     `yaml:"kind"`
	Features []string `yaml:"features"`
	Classes  []string `yaml:"classes,omitempty"`
}

// artifact is the on-disk estimator payload. One field is set per Kind.
type artifact struct {
	Pass      string              `json:"pass"`
	Kind      Kind                `json:"kind"`
	Forest    *ml.Forest          `json:"forest,omitempty"`
	KMeans    *ml.KMeans          `json:"kmeans,omitempty"`
	Isolation *ml.IsolationForest `json:"isolation,omitempty"`
	PCA       *ml.PCA             `json:"pca,omitempty"`
}

type scalerArtifact struct {
	Pass   string             `json:"pass"`
	Scaler *ml.StandardScaler `json:"scaler"`
}

// Save writes every entry of s to dir as a model file, a scaler file and a
// shared manifest. Each file is replaced by rename, the manifest last, and
// artifacts left over from earlier passes are removed afterwards.
func Save(dir string, s *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "registry: create %s", dir)
	}

	m := Manifest{Pass: uuid.NewString(), TrainedAt: s.TrainedAt}
	keep := map[string]bool{manifestFile: true}
	for _, name := range s.Names() {
		e, _ := s.Get(name)
		a := artifact{Pass: m.Pass, Kind: e.Kind, Forest: e.Forest, KMeans: e.KMeans, Isolation: e.Isolation, PCA: e.PCA}
		if err := writeJSON(filepath.Join(dir, name+modelSuffix), a); err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(dir, name+scalerSuffix), scalerArtifact{Pass: m.Pass, Scaler: e.Scaler}); err != nil {
			return err
		}
		keep[name+modelSuffix], keep[name+scalerSuffix] = true, true
		m.Models = append(m.Models, ManifestEntry{Name: name, Kind: e.Kind, Features: e.Features, Classes: e.Classes})
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return eris.Wrap(err, "registry: marshal manifest")
	}
	if err := writeFile(filepath.Join(dir, manifestFile), data); err != nil {
		return err
	}
	prune(dir, keep)

	zap.L().Info("registry: saved models",
		zap.String("dir", dir),
		zap.String("pass", m.Pass),
		zap.Int("models", len(m.Models)),
	)
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "registry: marshal %s", filepath.Base(path))
	}
	return writeFile(path, data)
}

// writeFile replaces path through a temp file in the same directory so a
// reader never sees a partly written artifact.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return eris.Wrapf(err, "registry: stage %s", filepath.Base(path))
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "registry: write %s", filepath.Base(path))
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "registry: chmod %s", filepath.Base(path))
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "registry: close %s", filepath.Base(path))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "registry: replace %s", filepath.Base(path))
	}
	return nil
}

// prune removes model and scaler files that the current manifest does not list.
func prune(dir string, keep map[string]bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		zap.L().Warn("registry: list for prune", zap.String("dir", dir), zap.Error(err))
		return
	}
	for _, de := range entries {
		name := de.Name()
		if keep[name] || !(strings.HasSuffix(name, modelSuffix) || strings.HasSuffix(name, scalerSuffix)) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			zap.L().Warn("registry: remove stale artifact", zap.String("file", name), zap.Error(err))
		}
	}
}

// Load reads a snapshot written by Save. A model file without its scaler, or
// a scaler without its model, fails with InconsistentArtifactsError before
// anything is decoded. So does a file stamped with a pass other than the
// manifest's.
func Load(dir string) (*Snapshot, error) {
	if err := checkPairs(dir); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &model.MissingInputError{Missing: []string{manifestFile}}
	}
	if err != nil {
		return nil, eris.Wrap(err, "registry: read manifest")
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "registry: parse manifest")
	}

	entries := make([]*Entry, 0, len(m.Models))
	for _, me := range m.Models {
		e := &Entry{Name: me.Name, Kind: me.Kind, Features: me.Features, Classes: me.Classes}

		var a artifact
		if err := readJSON(filepath.Join(dir, me.Name+modelSuffix), me.Name, "model", &a); err != nil {
			return nil, err
		}
		if a.Pass != m.Pass {
			return nil, &model.InconsistentArtifactsError{Model: me.Name, Stale: "model"}
		}
		if a.Kind != me.Kind {
			return nil, eris.Errorf("registry: %s is a %s in the manifest but a %s on disk", me.Name, me.Kind, a.Kind)
		}
		e.Forest, e.KMeans, e.Isolation, e.PCA = a.Forest, a.KMeans, a.Isolation, a.PCA

		var sa scalerArtifact
		if err := readJSON(filepath.Join(dir, me.Name+scalerSuffix), me.Name, "scaler", &sa); err != nil {
			return nil, err
		}
		if sa.Pass != m.Pass {
			return nil, &model.InconsistentArtifactsError{Model: me.Name, Stale: "scaler"}
		}
		if sa.Scaler == nil {
			return nil, &model.InconsistentArtifactsError{Model: me.Name, Missing: "scaler"}
		}
		e.Scaler = sa.Scaler
		entries = append(entries, e)
	}

	s, err := NewSnapshot(m.TrainedAt, entries...)
	if err != nil {
		return nil, err
	}
	zap.L().Info("registry: loaded models",
		zap.String("dir", dir),
		zap.Int("models", s.Len()),
	)
	return s, nil
}

func readJSON(path, name, part string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &model.InconsistentArtifactsError{Model: name, Missing: part}
	}
	if err != nil {
		return eris.Wrapf(err, "registry: read %s", filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "registry: decode %s", filepath.Base(path))
	}
	return nil
}

// checkPairs verifies that model and scaler files come in pairs.
func checkPairs(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return &model.MissingInputError{Missing: []string{dir}}
	}
	if err != nil {
		return eris.Wrapf(err, "registry: list %s", dir)
	}

	models := make(map[string]bool)
	scalers := make(map[string]bool)
	for _, de := range entries {
		name := de.Name()
		switch {
		case strings.HasSuffix(name, modelSuffix):
			models[strings.TrimSuffix(name, modelSuffix)] = true
		case strings.HasSuffix(name, scalerSuffix):
			scalers[strings.TrimSuffix(name, scalerSuffix)] = true
		}
	}

	var names []string
	for n := range models {
		names = append(names, n)
	}
	for n := range scalers {
		if !models[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		switch {
		case !scalers[n]:
			return &model.InconsistentArtifactsError{Model: n, Missing: "scaler"}
		case !models[n]:
			return &model.InconsistentArtifactsError{Model: n, Missing: "model"}
		}
	}
	return nil
}
