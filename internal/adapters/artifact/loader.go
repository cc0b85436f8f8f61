// Package artifact reads and publishes model artifact directories.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/okian/diarisk/internal/domain/features"
	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/types"
	"github.com/okian/diarisk/pkg/logger"
)

// Loader reads artifact directories.
type Loader struct {
	log logger.Logger
	now func() time.Time
}

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l logger.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.log = l
		}
	}
}

// WithClock overrides the clock used to stamp LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(ld *Loader) {
		if now != nil {
			ld.now = now
		}
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{log: logger.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the artifact at dir with a default Loader.
func Load(ctx context.Context, dir string) (*model.Artifact, error) {
	return NewLoader().Load(ctx, dir)
}

// Load reads and validates the artifact at dir. Every failure is a
// *types.Error of kind MissingArtifact or CorruptArtifact.
func (l *Loader) Load(ctx context.Context, dir string) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.Error{Kind: types.KindMissingArtifact, Msg: "load cancelled", Err: err}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &types.Error{Kind: types.KindMissingArtifact, Msg: fmt.Sprintf("artifact directory %s is not readable", dir), Err: err}
	}
	if !info.IsDir() {
		return nil, types.MissingArtifact(fmt.Sprintf("%s is not a directory", dir))
	}
	// Files are read through one directory handle; a Write that swaps dir
	// mid-load is caught by samePublished below.
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, &types.Error{Kind: types.KindMissingArtifact, Msg: fmt.Sprintf("artifact directory %s is not readable", dir), Err: err}
	}
	defer root.Close() //nolint:errcheck // read-only handle

	var cf classifierFile
	if err := readJSON(ctx, root, dir, ModelFile, true, &cf); err != nil {
		return nil, err
	}
	clf, err := cf.decode()
	if err != nil {
		return nil, types.CorruptArtifact(ModelFile, err)
	}

	var sf scalerFile
	if err := readJSON(ctx, root, dir, ScalerFile, true, &sf); err != nil {
		return nil, err
	}
	scaler, err := sf.decode()
	if err != nil {
		return nil, types.CorruptArtifact(ScalerFile, err)
	}

	var md *model.Metadata
	var m model.Metadata
	switch err := readJSON(ctx, root, dir, MetadataFile, false, &m); {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		md = &m
	}

	var names []string
	switch err := readJSON(ctx, root, dir, FeatureNamesFile, false, &names); {
	case errors.Is(err, fs.ErrNotExist):
		if md != nil && len(md.Features) > 0 {
			names = md.Features
		} else {
			names = append([]string(nil), features.Names[:]...)
			l.log.Warn(ctx, "artifact has no feature names, assuming canonical order",
				logger.String("dir", dir))
		}
	case err != nil:
		return nil, err
	}

	if !samePublished(root, dir) {
		return nil, types.MissingArtifact(fmt.Sprintf("%s was replaced while loading", dir))
	}

	a := &model.Artifact{
		Classifier:   clf,
		Scaler:       scaler,
		FeatureNames: names,
		Metadata:     md,
		Dir:          dir,
		LoadedAt:     l.now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, types.CorruptArtifact("validation failed", err)
	}
	return a, nil
}

// readJSON decodes dir/name into v. A missing required file is reported as
// MissingArtifact; a missing optional file returns fs.ErrNotExist.
func readJSON(ctx context.Context, root *os.Root, dir, name string, required bool, v any) error {
	if err := ctx.Err(); err != nil {
		return &types.Error{Kind: types.KindMissingArtifact, Msg: "load cancelled", Err: err}
	}
	data, err := readFile(root, name)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !required:
		return fs.ErrNotExist
	case errors.Is(err, fs.ErrNotExist):
		return types.MissingArtifact(fmt.Sprintf("%s not found in %s", name, dir))
	case err != nil:
		return &types.Error{Kind: types.KindMissingArtifact, Msg: fmt.Sprintf("%s is not readable", name), Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return types.CorruptArtifact(name, err)
	}
	return nil
}

func readFile(root *os.Root, name string) ([]byte, error) {
	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only
	return io.ReadAll(f)
}

// samePublished reports whether dir still names the directory root was
// opened on.
func samePublished(root *os.Root, dir string) bool {
	held, err := root.Stat(".")
	if err != nil {
		return false
	}
	cur, err := os.Stat(dir)
	if err != nil {
		return false
	}
	return os.SameFile(held, cur)
}
