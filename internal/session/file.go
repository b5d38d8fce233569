package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
)

const (
	extJSON = ".json"
	extZstd = ".json.zst"
)

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("session: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("session: zstd decoder initialization failed: " + err.Error())
	}
}

// FileRepository keeps one file per snapshot in a directory: <id>.json, or
// <id>.json.zst when compression is enabled. Either form is readable
// regardless of the compression setting.
type FileRepository struct {
	dir      string
	compress bool
}

var _ Repository = (*FileRepository)(nil)

// NewFileRepository creates dir if needed.
func NewFileRepository(dir string, compress bool) (*FileRepository, error) {
	if dir == "" {
		return nil, jherrors.NewConfigError("session directory cannot be empty", nil)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, jherrors.NewConfigError(fmt.Sprintf("failed to create session directory '%s'", dir), err)
	}
	return &FileRepository{dir: dir, compress: compress}, nil
}

// Save writes the snapshot atomically and removes a copy stored in the other
// format.
func (r *FileRepository) Save(ctx context.Context, id string, snap *state.Snapshot) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := marshal(snap)
	if err != nil {
		return err
	}

	ext, stale := extJSON, extZstd
	if r.compress {
		data = zstdEncoder.EncodeAll(data, nil)
		ext, stale = extZstd, extJSON
	}

	tmp, err := os.CreateTemp(r.dir, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for session '%s': %w", id, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session '%s': %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session '%s': %w", id, err)
	}
	if err := os.Rename(tmp.Name(), r.path(id, ext)); err != nil {
		return fmt.Errorf("failed to store session '%s': %w", id, err)
	}
	if err := os.Remove(r.path(id, stale)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove stale copy of session '%s': %w", id, err)
	}
	return nil
}

// Load reads a snapshot in either format.
func (r *FileRepository) Load(ctx context.Context, id string) (*state.Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path(id, extZstd))
	if err == nil {
		data, err = zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress session '%s': %w", id, err)
		}
		return unmarshal(data)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read session '%s': %w", id, err)
	}

	data, err = os.ReadFile(r.path(id, extJSON))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, jherrors.NewSnapshotNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session '%s': %w", id, err)
	}
	return unmarshal(data)
}

// List returns the stored sessions, most recently saved first.
func (r *FileRepository) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list session directory '%s': %w", r.dir, err)
	}
	var infos []Info
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		id, ok := trimExt(e.Name())
		if !ok {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{ID: id, SavedAt: fi.ModTime().UTC(), Size: fi.Size()})
	}
	sortInfos(infos)
	return infos, nil
}

// Delete removes every stored form of the snapshot.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	removed := false
	for _, ext := range []string{extJSON, extZstd} {
		err := os.Remove(r.path(id, ext))
		switch {
		case err == nil:
			removed = true
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("failed to delete session '%s': %w", id, err)
		}
	}
	if !removed {
		return jherrors.NewSnapshotNotFoundError(id)
	}
	return nil
}

func (r *FileRepository) path(id, ext string) string {
	return filepath.Join(r.dir, id+ext)
}

func trimExt(name string) (string, bool) {
	if strings.HasSuffix(name, extZstd) {
		return strings.TrimSuffix(name, extZstd), true
	}
	if strings.HasSuffix(name, extJSON) {
		return strings.TrimSuffix(name, extJSON), true
	}
	return "", false
}

// sortInfos orders by SavedAt descending, then by id.
func sortInfos(infos []Info) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].SavedAt.Equal(infos[j].SavedAt) {
			return infos[i].SavedAt.After(infos[j].SavedAt)
		}
		return infos[i].ID < infos[j].ID
	})
}
