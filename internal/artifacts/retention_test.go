package artifacts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeArchive struct {
	archived []string
	failOn   string
}

func (f *fakeArchive) Archive(ctx context.Context, executionID string, dir string) error {
	if executionID == f.failOn {
		return os.ErrInvalid
	}
	f.archived = append(f.archived, executionID)
	return nil
}

func ageDir(t *testing.T, path string, age time.Duration) {
	t.Helper()
	ts := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestPrune_NeverTouchesDirectoriesWithinGracePeriod(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create("fresh-exec"))

	policy := RetentionPolicy{MaxAge: time.Millisecond, MaxCount: 0, GracePeriod: time.Hour}
	pruned, err := s.Prune(context.Background(), policy)
	require.NoError(t, err)
	require.Empty(t, pruned)
}

func TestPrune_RequiresBothAgeAndCountExceededToEvict(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create("old-exec"))
	ageDir(t, s.Dir("old-exec"), 48*time.Hour)

	// Old enough to exceed MaxAge, but MaxCount is generous enough that
	// count-based eviction never kicks in for a single directory.
	policy := RetentionPolicy{MaxAge: time.Hour, MaxCount: 100, GracePeriod: 0}
	pruned, err := s.Prune(context.Background(), policy)
	require.NoError(t, err)
	require.Empty(t, pruned)

	_, statErr := os.Stat(s.Dir("old-exec"))
	require.NoError(t, statErr)
}

func TestPrune_EvictsOldestFirstWhenBothThresholdsExceeded(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create("oldest"))
	require.NoError(t, s.Create("middle"))
	require.NoError(t, s.Create("newest"))

	ageDir(t, s.Dir("oldest"), 3*time.Hour)
	ageDir(t, s.Dir("middle"), 2*time.Hour)
	ageDir(t, s.Dir("newest"), time.Hour+time.Minute)

	policy := RetentionPolicy{MaxAge: time.Hour, MaxCount: 1, GracePeriod: 0}
	pruned, err := s.Prune(context.Background(), policy)
	require.NoError(t, err)
	require.Equal(t, []string{"oldest", "middle"}, pruned)

	_, err = os.Stat(s.Dir("newest"))
	require.NoError(t, err, "newest directory within the retained count should survive")
}

func TestPrune_ArchivesBeforeRemovingWhenBackendConfigured(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create("to-archive"))
	ageDir(t, s.Dir("to-archive"), 48*time.Hour)

	archive := &fakeArchive{}
	policy := RetentionPolicy{MaxAge: time.Hour, MaxCount: 0, GracePeriod: 0, Archive: archive}
	pruned, err := s.Prune(context.Background(), policy)
	require.NoError(t, err)
	require.Equal(t, []string{"to-archive"}, pruned)
	require.Equal(t, []string{"to-archive"}, archive.archived)

	_, statErr := os.Stat(s.Dir("to-archive"))
	require.True(t, os.IsNotExist(statErr))
}

func TestPrune_StopsOnArchiveFailureWithoutRemovingLocalDir(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create("bad-archive"))
	ageDir(t, s.Dir("bad-archive"), 48*time.Hour)

	archive := &fakeArchive{failOn: "bad-archive"}
	policy := RetentionPolicy{MaxAge: time.Hour, MaxCount: 0, GracePeriod: 0, Archive: archive}
	_, err = s.Prune(context.Background(), policy)
	require.Error(t, err)

	_, statErr := os.Stat(s.Dir("bad-archive"))
	require.NoError(t, statErr, "directory must survive a failed archive attempt")
}

func TestDefaultRetentionPolicy_MatchesDocumentedDefaults(t *testing.T) {
	p := DefaultRetentionPolicy()
	require.Equal(t, 7*24*time.Hour, p.MaxAge)
	require.Equal(t, 100, p.MaxCount)
	require.Equal(t, time.Hour, p.GracePeriod)
	require.Nil(t, p.Archive)
}
