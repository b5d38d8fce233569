// Package session persists state store snapshots so a career coaching
// session can be resumed later, on this machine or another one.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
)

// Info describes a stored snapshot.
type Info struct {
	ID string `json:"id"`
	// SavedAt is when the snapshot was written to the repository.
	SavedAt time.Time `json:"saved_at"`
	// Size is the stored size in bytes, compressed if applicable.
	Size int64 `json:"size"`
}

// Repository stores snapshots by id. Load and Delete of an unknown id return
// a SnapshotNotFoundError. Save overwrites an existing snapshot.
type Repository interface {
	Save(ctx context.Context, id string, snap *state.Snapshot) error
	Load(ctx context.Context, id string) (*state.Snapshot, error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, id string) error
}

var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// ValidateID checks that id is safe to use as a file name and object key.
func ValidateID(id string) error {
	if !idRegex.MatchString(id) || id == "." || id == ".." {
		return jherrors.NewValidationError(fmt.Sprintf("invalid session id '%s' (allowed: letters, digits, '_', '.', '-')", id), nil)
	}
	return nil
}

// Encode writes snap as JSON.
func Encode(w io.Writer, snap *state.Snapshot) error {
	if snap == nil {
		return jherrors.NewValidationError("cannot encode a nil snapshot", nil)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a JSON snapshot written by Encode. Missing sections decode as
// empty maps. Whole numbers decode as int (int64 when they overflow int) and
// all other numbers as float64, so a float with no fractional part, such as
// 5.0, comes back as int 5.
func Decode(r io.Reader) (*state.Snapshot, error) {
	var snap state.Snapshot
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		return nil, jherrors.NewValidationError("failed to decode snapshot", err)
	}
	normalize(&snap)
	return &snap, nil
}

func marshal(snap *state.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, jherrors.NewValidationError("cannot encode a nil snapshot", nil)
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return b, nil
}

func unmarshal(b []byte) (*state.Snapshot, error) {
	return Decode(bytes.NewReader(b))
}

func normalize(snap *state.Snapshot) {
	if snap.State == nil {
		snap.State = map[string]interface{}{}
	}
	if snap.ApplicationStates == nil {
		snap.ApplicationStates = map[string]map[string]interface{}{}
	}
	if snap.Metadata == nil {
		snap.Metadata = map[string]map[string]state.Metadata{}
	}

	for k, v := range snap.State {
		snap.State[k] = convertNumbers(v)
	}
	for _, ns := range snap.ApplicationStates {
		for k, v := range ns {
			ns[k] = convertNumbers(v)
		}
	}
	for _, ns := range snap.Metadata {
		for _, md := range ns {
			for k, v := range md {
				md[k] = convertNumbers(v)
			}
		}
	}
}

// convertNumbers replaces the json.Number values left by UseNumber.
func convertNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(val.String(), 10, 0); err == nil {
			return int(i)
		}
		if i, err := strconv.ParseInt(val.String(), 10, 64); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]interface{}:
		for k, item := range val {
			val[k] = convertNumbers(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = convertNumbers(item)
		}
		return val
	}
	return v
}
