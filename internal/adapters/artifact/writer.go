package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/okian/diarisk/internal/domain/model"
)

type namedFile struct {
	name string
	v    any
}

// Write publishes a to dir. Files are staged in a sibling temporary
// directory which then replaces dir, so readers never observe a partial
// artifact. See swap for the window in which dir is absent.
func Write(ctx context.Context, dir string, a *model.Artifact) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("refusing to write artifact: %w", err)
	}
	cf, err := encodeClassifier(a.Classifier)
	if err != nil {
		return err
	}

	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp) //nolint:errcheck // best-effort cleanup; empty after a successful rename

	files := []namedFile{
		{ModelFile, cf},
		{ScalerFile, scalerFile{Mean: a.Scaler.Mean.Slice(), Std: a.Scaler.Std.Slice()}},
		{FeatureNamesFile, a.FeatureNames},
	}
	if a.Metadata != nil {
		files = append(files, namedFile{MetadataFile, a.Metadata})
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("write cancelled: %w", err)
		}
		if err := writeJSON(filepath.Join(tmp, f.name), f.v); err != nil {
			return err
		}
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		return fmt.Errorf("chmod staging directory: %w", err)
	}
	return swap(tmp, dir)
}

// swap moves tmp into place at dir, keeping the previous dir until the
// new one is in place. Between the two renames dir does not exist: a Load
// landing there fails with MissingArtifact and a service Reload keeps the
// model it already serves. Retrying the reload picks up the new artifact.
func swap(tmp, dir string) error {
	old := ""
	if _, err := os.Stat(dir); err == nil {
		old = tmp + ".old"
		if err := os.Rename(dir, old); err != nil {
			return fmt.Errorf("move previous artifact aside: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat destination: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		if old != "" {
			_ = os.Rename(old, dir)
		}
		return fmt.Errorf("publish artifact: %w", err)
	}
	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			return fmt.Errorf("remove previous artifact: %w", err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
