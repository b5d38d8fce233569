package session_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobhunter-labs/jobhunter/internal/session"
	intstate "github.com/jobhunter-labs/jobhunter/internal/state"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
)

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC)

func sampleSnapshot(t *testing.T) *state.Snapshot {
	t.Helper()
	s := intstate.NewMemoryStateStore(intstate.WithClock(func() time.Time { return fixedNow }))
	s.Store("career_profile_output", map[string]interface{}{"skills": []interface{}{"go", "sql"}, "years": 5, "score": 87.5}, "", state.Metadata{"source": "profile"})
	s.Store("job_opportunities_output", []interface{}{"acme", "globex"}, "acme-backend", nil)
	s.Store("notes:with:colons", "ok", "acme-backend", nil)
	return s.SaveSession()
}

func TestCodec_RoundTrip(t *testing.T) {
	snap := sampleSnapshot(t)

	var buf bytes.Buffer
	require.NoError(t, session.Encode(&buf, snap))
	assert.Contains(t, buf.String(), `"application_states"`)

	got, err := session.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap.State, got.State)
	assert.Equal(t, snap.ApplicationStates, got.ApplicationStates)
	assert.Equal(t, "profile", got.Metadata[""]["career_profile_output"]["source"])
	assert.Contains(t, got.Metadata["acme-backend"], "notes:with:colons")
	assert.True(t, snap.Timestamp.Equal(got.Timestamp))

	restored := intstate.NewMemoryStateStore()
	restored.RestoreSession(got)
	v, ok := restored.Retrieve("job_opportunities_output", "acme-backend")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"acme", "globex"}, v)
}

func TestCodec_Numbers(t *testing.T) {
	s := intstate.NewMemoryStateStore()
	s.Store("counts", map[string]interface{}{
		"small":    42,
		"negative": -7,
		"large":    int64(1) << 60,
		"ratio":    0.25,
		"whole":    3.0,
		"nested":   []interface{}{1, 2.5},
	}, "app1", state.Metadata{"attempt": 2})

	var buf bytes.Buffer
	require.NoError(t, session.Encode(&buf, s.SaveSession()))
	got, err := session.Decode(&buf)
	require.NoError(t, err)

	counts := got.ApplicationStates["app1"]["counts"].(map[string]interface{})
	assert.Equal(t, 42, counts["small"])
	assert.Equal(t, -7, counts["negative"])
	assert.EqualValues(t, int64(1)<<60, counts["large"], "no float64 precision loss")
	assert.Equal(t, 0.25, counts["ratio"])
	assert.Equal(t, 3, counts["whole"])
	assert.Equal(t, []interface{}{1, 2.5}, counts["nested"])
	assert.Equal(t, 2, got.Metadata["app1"]["counts"]["attempt"])
}

func TestCodec_Errors(t *testing.T) {
	assert.Error(t, session.Encode(&bytes.Buffer{}, nil))

	_, err := session.Decode(strings.NewReader("{not json"))
	var vErr *jherrors.ValidationError
	assert.ErrorAs(t, err, &vErr)

	snap, err := session.Decode(strings.NewReader(`{"timestamp":"2025-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.NotNil(t, snap.State)
	assert.NotNil(t, snap.ApplicationStates)
	assert.NotNil(t, snap.Metadata)
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{session.NewID(), "acme-backend_2025.01", "a"} {
		assert.NoError(t, session.ValidateID(id), id)
	}
	for _, id := range []string{"", ".", "..", "../etc", "a/b", ".hidden", "with space"} {
		assert.Error(t, session.ValidateID(id), id)
	}
}

// exerciseRepository runs the Repository contract against repo.
func exerciseRepository(t *testing.T, repo session.Repository) {
	t.Helper()
	ctx := context.Background()
	snap := sampleSnapshot(t)

	_, err := repo.Load(ctx, "missing")
	assert.True(t, jherrors.IsSnapshotNotFound(err))
	assert.True(t, jherrors.IsSnapshotNotFound(repo.Delete(ctx, "missing")))

	require.NoError(t, repo.Save(ctx, "s1", snap))
	require.NoError(t, repo.Save(ctx, "s2", snap))

	got, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, snap.State, got.State)
	assert.Equal(t, snap.ApplicationStates, got.ApplicationStates)

	snap.State["extra"] = "v2"
	require.NoError(t, repo.Save(ctx, "s1", snap))
	got, err = repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.State["extra"])

	infos, err := repo.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.ID)
		assert.Positive(t, info.Size)
	}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Load(ctx, "s1")
	assert.True(t, jherrors.IsSnapshotNotFound(err))

	assert.Error(t, repo.Save(ctx, "../escape", snap))
}

func TestFileRepository(t *testing.T) {
	for _, compress := range []bool{false, true} {
		repo, err := session.NewFileRepository(t.TempDir(), compress)
		require.NoError(t, err)
		exerciseRepository(t, repo)
	}
}

func TestFileRepository_SwitchingCompression(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	plain, err := session.NewFileRepository(dir, false)
	require.NoError(t, err)
	zst, err := session.NewFileRepository(dir, true)
	require.NoError(t, err)

	snap := sampleSnapshot(t)
	require.NoError(t, plain.Save(ctx, "s", snap))
	_, err = zst.Load(ctx, "s")
	require.NoError(t, err)

	require.NoError(t, zst.Save(ctx, "s", snap))
	_, err = os.Stat(filepath.Join(dir, "s.json"))
	assert.True(t, os.IsNotExist(err), "the uncompressed copy is replaced")
	_, err = os.Stat(filepath.Join(dir, "s.json.zst"))
	assert.NoError(t, err)

	infos, err := plain.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "s", infos[0].ID)
}

func TestNewFileRepository_EmptyDir(t *testing.T) {
	_, err := session.NewFileRepository("", false)
	var cfgErr *jherrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
