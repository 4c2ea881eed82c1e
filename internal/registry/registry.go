// Package registry implements the Track Registry (spec.md §4.6):
// idempotent resolution of a recognition Outcome to a persistent Track,
// via the ISRC-then-fingerprint-then-create fallback chain. Grounded on
// the teacher's get-or-create pattern in internal/repository
// (GetOrCreateArtist/GetOrCreateLabel), generalized here to the full
// three-step resolution the monitoring spec requires.
package registry

import (
	"context"
	"errors"

	"github.com/zfogg/sidechain/backend/internal/models"
	"github.com/zfogg/sidechain/backend/internal/recognition"
	"github.com/zfogg/sidechain/backend/internal/repository"
)

// Registry resolves recognition outcomes to Track rows, creating
// Artist/Label/Track records as needed so recognizers never see a
// "which table do I insert into" decision.
type Registry struct {
	tracks repository.TrackRepository
}

func New(tracks repository.TrackRepository) *Registry {
	return &Registry{tracks: tracks}
}

// Resolve implements the algorithm in spec.md §4.6. fpHash/fpBlob are
// the Feature Extractor's fingerprint for this segment; they're
// attached to whatever Track is returned, growing that Track's
// fingerprint set (spec.md §3: "A Track may have several Fingerprints
// accumulated over time").
func (r *Registry) Resolve(ctx context.Context, outcome recognition.Outcome, fpHash string, fpBlob []byte) (*models.Track, error) {
	switch outcome.Kind {
	case recognition.KindLocalMatch:
		track, err := r.tracks.GetTrack(ctx, outcome.Descriptor.TrackID)
		if err != nil {
			return nil, err
		}
		if err := r.attachFingerprint(ctx, track.ID, fpHash, fpBlob); err != nil {
			return nil, err
		}
		return track, nil

	case recognition.KindExternalMatch:
		return r.resolveExternal(ctx, outcome.Descriptor, fpHash, fpBlob)

	default:
		return nil, nil
	}
}

func (r *Registry) resolveExternal(ctx context.Context, d recognition.Descriptor, fpHash string, fpBlob []byte) (*models.Track, error) {
	if d.ISRC != "" {
		existing, err := r.tracks.GetTrackByISRC(ctx, d.ISRC)
		if err == nil {
			if err := r.attachFingerprint(ctx, existing.ID, fpHash, fpBlob); err != nil {
				return nil, err
			}
			return existing, nil
		}
		if !errors.Is(err, repository.ErrTrackNotFound) {
			return nil, err
		}
		return r.createTrack(ctx, d, fpHash, fpBlob)
	}

	if fpHash != "" {
		existing, err := r.tracks.FindTrackByFingerprintHash(ctx, fpHash)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrTrackNotFound) {
			return nil, err
		}
	}

	return r.createTrack(ctx, d, fpHash, fpBlob)
}

// createTrack builds the Artist/Label (by normalized name, creating
// lazily on first sight) then the Track itself, attaching the
// triggering fingerprint. The repository's select-then-insert-on-conflict
// pattern inside GetOrCreateArtist/Label means two stations racing the
// same new artist or ISRC converge on one row (spec.md §4.6 invariant,
// scenario 6).
func (r *Registry) createTrack(ctx context.Context, d recognition.Descriptor, fpHash string, fpBlob []byte) (*models.Track, error) {
	artistName := d.Artist
	if artistName == "" {
		artistName = "Unknown Artist"
	}
	artist, err := r.tracks.GetOrCreateArtist(ctx, artistName)
	if err != nil {
		return nil, err
	}

	var labelID *string
	if d.Label != "" {
		label, err := r.tracks.GetOrCreateLabel(ctx, d.Label)
		if err != nil {
			return nil, err
		}
		labelID = &label.ID
	}

	title := d.Title
	if title == "" {
		title = "Unknown Title"
	}

	track := &models.Track{
		Title:    title,
		ArtistID: artist.ID,
		LabelID:  labelID,
	}
	if d.Album != "" {
		track.Album = &d.Album
	}
	if d.ISRC != "" {
		track.ISRC = &d.ISRC
	}

	if err := r.tracks.CreateTrack(ctx, track); err != nil {
		// A concurrent recognizer may have just created the same ISRC;
		// fall back to the row that won the race rather than error.
		if d.ISRC != "" {
			if existing, findErr := r.tracks.GetTrackByISRC(ctx, d.ISRC); findErr == nil {
				if err := r.attachFingerprint(ctx, existing.ID, fpHash, fpBlob); err != nil {
					return nil, err
				}
				return existing, nil
			}
		}
		return nil, err
	}

	if err := r.attachFingerprint(ctx, track.ID, fpHash, fpBlob); err != nil {
		return nil, err
	}
	return track, nil
}

func (r *Registry) attachFingerprint(ctx context.Context, trackID, fpHash string, fpBlob []byte) error {
	if fpHash == "" {
		return nil
	}
	return r.tracks.CreateFingerprint(ctx, &models.Fingerprint{
		TrackID: trackID,
		FpHash:  fpHash,
		FpBlob:  fpBlob,
	})
}

// IsrcKnown adapts GetTrackByISRC into the recognition.IsrcKnownFunc
// callback, letting the External Recognizer's service-B short-circuit
// check local identity without importing this package.
func (r *Registry) IsrcKnown(ctx context.Context, isrc string) bool {
	_, err := r.tracks.GetTrackByISRC(ctx, isrc)
	return err == nil
}
