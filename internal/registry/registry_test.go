package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/backend/internal/models"
	"github.com/zfogg/sidechain/backend/internal/recognition"
	"github.com/zfogg/sidechain/backend/internal/repository"
)

// fakeTrackRepository is an in-memory stand-in for repository.TrackRepository,
// grounded on the teacher's suite-based repository tests but simplified to a
// plain map so the registry's resolution logic can be exercised without a
// database.
type fakeTrackRepository struct {
	tracks       map[string]*models.Track
	byISRC       map[string]string
	artists      map[string]*models.Artist
	labels       map[string]*models.Label
	fingerprints map[string]string // fpHash -> trackID
}

func newFakeTrackRepository() *fakeTrackRepository {
	return &fakeTrackRepository{
		tracks:       map[string]*models.Track{},
		byISRC:       map[string]string{},
		artists:      map[string]*models.Artist{},
		labels:       map[string]*models.Label{},
		fingerprints: map[string]string{},
	}
}

func (f *fakeTrackRepository) GetTrack(_ context.Context, trackID string) (*models.Track, error) {
	t, ok := f.tracks[trackID]
	if !ok {
		return nil, repository.ErrTrackNotFound
	}
	return t, nil
}

func (f *fakeTrackRepository) GetTrackByISRC(_ context.Context, isrc string) (*models.Track, error) {
	id, ok := f.byISRC[isrc]
	if !ok {
		return nil, repository.ErrTrackNotFound
	}
	return f.tracks[id], nil
}

func (f *fakeTrackRepository) CreateTrack(_ context.Context, track *models.Track) error {
	track.ID = uuid.NewString()
	f.tracks[track.ID] = track
	if track.ISRC != nil {
		f.byISRC[*track.ISRC] = track.ID
	}
	return nil
}

func (f *fakeTrackRepository) GetOrCreateArtist(_ context.Context, name string) (*models.Artist, error) {
	if a, ok := f.artists[name]; ok {
		return a, nil
	}
	a := &models.Artist{ID: uuid.NewString(), Name: name}
	f.artists[name] = a
	return a, nil
}

func (f *fakeTrackRepository) GetOrCreateLabel(_ context.Context, name string) (*models.Label, error) {
	if l, ok := f.labels[name]; ok {
		return l, nil
	}
	l := &models.Label{ID: uuid.NewString(), Name: name}
	f.labels[name] = l
	return l, nil
}

func (f *fakeTrackRepository) CreateFingerprint(_ context.Context, fp *models.Fingerprint) error {
	f.fingerprints[fp.FpHash] = fp.TrackID
	return nil
}

func (f *fakeTrackRepository) ListFingerprints(_ context.Context) ([]*models.Fingerprint, error) {
	return nil, nil
}

func (f *fakeTrackRepository) FindTrackByFingerprintHash(_ context.Context, hash string) (*models.Track, error) {
	id, ok := f.fingerprints[hash]
	if !ok {
		return nil, repository.ErrTrackNotFound
	}
	return f.tracks[id], nil
}

func TestResolve_ExternalMatchWithNewISRCCreatesTrack(t *testing.T) {
	repo := newFakeTrackRepository()
	reg := New(repo)

	outcome := recognition.ExternalMatchOutcome(recognition.Descriptor{
		Title: "Song One", Artist: "Artist One", ISRC: "FR1234567890",
	}, 0.9, recognition.MethodExternalA)

	track, err := reg.Resolve(context.Background(), outcome, "hash-1", []byte("fp"))
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "FR1234567890", *track.ISRC)
}

func TestResolve_ExternalMatchWithKnownISRCReusesTrack(t *testing.T) {
	repo := newFakeTrackRepository()
	reg := New(repo)
	ctx := context.Background()

	first, err := reg.Resolve(ctx, recognition.ExternalMatchOutcome(recognition.Descriptor{
		Title: "Song One", Artist: "Artist One", ISRC: "FR1234567890",
	}, 0.9, recognition.MethodExternalA), "hash-1", nil)
	require.NoError(t, err)

	second, err := reg.Resolve(ctx, recognition.ExternalMatchOutcome(recognition.Descriptor{
		Title: "Song One (Radio Edit)", Artist: "Artist One", ISRC: "FR1234567890",
	}, 0.85, recognition.MethodExternalA), "hash-2", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.tracks, 1)
}

func TestResolve_LocalMatchAttachesFingerprintToExistingTrack(t *testing.T) {
	repo := newFakeTrackRepository()
	reg := New(repo)
	ctx := context.Background()

	existing := &models.Track{Title: "Known Song", ArtistID: "artist-1"}
	require.NoError(t, repo.CreateTrack(ctx, existing))

	outcome := recognition.LocalMatchOutcome(existing.ID, 0.95)
	track, err := reg.Resolve(ctx, outcome, "hash-3", nil)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, track.ID)
	assert.Equal(t, existing.ID, repo.fingerprints["hash-3"])
}

func TestIsrcKnown(t *testing.T) {
	repo := newFakeTrackRepository()
	reg := New(repo)
	ctx := context.Background()

	assert.False(t, reg.IsrcKnown(ctx, "FR9999999999"))

	_, err := reg.Resolve(ctx, recognition.ExternalMatchOutcome(recognition.Descriptor{
		Title: "X", Artist: "Y", ISRC: "FR9999999999",
	}, 0.9, recognition.MethodExternalA), "h", nil)
	require.NoError(t, err)

	assert.True(t, reg.IsrcKnown(ctx, "FR9999999999"))
}
