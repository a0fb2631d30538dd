package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscout/soundscout-go/internal/conf"
)

// newTestStore opens a fresh SQLite store in a per-test temp directory.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "soundscout.db")

	store, ok := New(settings).(*SQLiteStore)
	require.True(t, ok, "expected SQLite backend")
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func boolPtr(b bool) *bool { return &b }

func TestNewWithoutBackend(t *testing.T) {
	assert.Nil(t, New(&conf.Settings{}))
}

func TestCreateArtistsIdempotent(t *testing.T) {
	store := newTestStore(t)

	n, err := store.CreateArtists([]Artist{{ID: "ar1", Name: "First"}, {ID: "ar2", Name: "Second"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-running a persist stage with one overlapping row writes only the new one.
	n, err = store.CreateArtists([]Artist{{ID: "ar1", Name: "First"}, {ID: "ar3", Name: "Third"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	missing, err := store.MissingArtistIDs([]string{"ar1", "ar2", "ar3", "ar4", "ar4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ar4"}, missing)
}

func TestCreateArtistDuplicateIsNoOp(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateArtist(&Artist{ID: "ar1", Name: "Original"}))
	require.NoError(t, store.CreateArtist(&Artist{ID: "ar1", Name: "Other"}))

	got, err := store.GetArtist("ar1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Original", got.Name)
}

func TestGetArtistAbsent(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetArtist("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateArtistStatusPreservesUnsetFields(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateArtist(&Artist{ID: "ar1", Name: "Act", Verified: boolPtr(true)}))

	existing, err := store.GetArtist("ar1")
	require.NoError(t, err)
	require.NotNil(t, existing)

	// Incoming carries no status fields, nothing should change.
	require.NoError(t, store.UpdateArtistStatus(existing, &Artist{ID: "ar1"}))
	got, err := store.GetArtist("ar1")
	require.NoError(t, err)
	require.NotNil(t, got.Verified)
	assert.True(t, *got.Verified)
	assert.Nil(t, got.Active)

	// Incoming sets active only, the stored verified flag survives.
	require.NoError(t, store.UpdateArtistStatus(got, &Artist{ID: "ar1", Active: boolPtr(false)}))
	got, err = store.GetArtist("ar1")
	require.NoError(t, err)
	require.NotNil(t, got.Verified)
	assert.True(t, *got.Verified)
	require.NotNil(t, got.Active)
	assert.False(t, *got.Active)
	assert.Equal(t, "Act", got.Name)
}

func TestUpdateAlbumsReplacesMetadata(t *testing.T) {
	store := newTestStore(t)

	release := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.CreateAlbums([]Album{{ID: "al1", Name: "Draft", ReleaseDate: release}})
	require.NoError(t, err)

	_, err = store.UpdateAlbums([]Album{{ID: "al1", Name: "Final", TotalTracks: 12, ReleaseDate: release, LabelID: "lb1"}})
	require.NoError(t, err)

	got, err := store.GetAlbum("al1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Final", got.Name)
	assert.Equal(t, 12, got.TotalTracks)
	assert.Equal(t, "lb1", got.LabelID)
}

func TestCanonicalPair(t *testing.T) {
	src, tgt := canonicalPair("b", "a")
	assert.Equal(t, "a", src)
	assert.Equal(t, "b", tgt)

	src, tgt = canonicalPair("a", "b")
	assert.Equal(t, "a", src)
	assert.Equal(t, "b", tgt)
}

func TestTrackDistanceOrderingInvariant(t *testing.T) {
	store := newTestStore(t)

	row, err := store.CreateTrackDistance("tB", "tA", "m1", "euclidean", 0.42)
	require.NoError(t, err)
	assert.Equal(t, "tA", row.SrcID)
	assert.Equal(t, "tB", row.TgtID)
	assert.Equal(t, "tA_tB_m1_euclidean", row.ID)

	// Both input orders resolve to the same row.
	got, err := store.GetTrackDistance("tA", "tB", "m1", "euclidean")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.42, got.Distance, 1e-9)

	got, err = store.GetTrackDistance("tB", "tA", "m1", "euclidean")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Writing the reverse order again is a benign skip, not an error.
	_, err = store.CreateTrackDistance("tA", "tB", "m1", "euclidean", 0.99)
	require.NoError(t, err)
	got, err = store.GetTrackDistance("tA", "tB", "m1", "euclidean")
	require.NoError(t, err)
	assert.InDelta(t, 0.42, got.Distance, 1e-9)

	got, err = store.GetTrackDistance("tA", "tB", "m2", "euclidean")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertEdgesIgnoresDuplicates(t *testing.T) {
	store := newTestStore(t)

	pairs := []EdgePair{
		{PrimaryID: "t1", RelatedID: "ar1"},
		{PrimaryID: "t1", RelatedID: "ar2"},
	}
	n, err := store.InsertEdges(EdgeTrackArtist, pairs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.InsertEdges(EdgeTrackArtist, append(pairs, EdgePair{PrimaryID: "t2", RelatedID: "ar1"}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	existing, err := store.ExistingEdges(EdgeTrackArtist, []string{"t1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, pairs, existing)

	_, err = store.InsertEdges(EdgeKind("bogus"), pairs)
	assert.Error(t, err)
}

func TestEnsureGenres(t *testing.T) {
	store := newTestStore(t)

	n, err := store.EnsureGenres([]string{"rock", "pop"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.EnsureGenres([]string{"rock", "jazz"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPopularPlaylistsOrdering(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, store.CreatePlaylist(&Playlist{ID: id, Name: id}))
	}
	today := time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreatePlaylistFollowerCount(
		&PlaylistFollowerCount{ID: "p1_2026-08-29", PlaylistID: "p1", Date: today, Followers: 10}))
	require.NoError(t, store.CreatePlaylistFollowerCount(
		&PlaylistFollowerCount{ID: "p2_2026-08-29", PlaylistID: "p2", Date: today, Followers: 500}))

	ids, err := store.PopularPlaylists(0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1", "p3"}, ids)

	ids, err = store.PopularPlaylists(1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestTracksMissingPreviewURL(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateTracks([]Track{
		{ID: "t1", Name: "with preview", PreviewURL: "https://cdn.example/t1.mp3"},
		{ID: "t2", Name: "without preview"},
	})
	require.NoError(t, err)

	ids, err := store.TracksMissingPreviewURL(0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, ids)
}

func TestRisingTracksMissingSpectrograms(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateTracks([]Track{
		{ID: "t-rising", PreviewURL: "https://cdn.example/rising.mp3"},
		{ID: "t-flat", PreviewURL: "https://cdn.example/flat.mp3"},
		{ID: "t-done", PreviewURL: "https://cdn.example/done.mp3"},
	})
	require.NoError(t, err)

	yesterday := time.Now().AddDate(0, 0, -1)
	now := time.Now()
	_, err = store.CreateTrackPlaycounts([]TrackPlaycount{
		{ID: "t-rising_d1", TrackID: "t-rising", Date: yesterday, Playcount: 100},
		{ID: "t-rising_d2", TrackID: "t-rising", Date: now, Playcount: 250},
		{ID: "t-flat_d1", TrackID: "t-flat", Date: yesterday, Playcount: 100},
		{ID: "t-flat_d2", TrackID: "t-flat", Date: now, Playcount: 100},
		{ID: "t-done_d1", TrackID: "t-done", Date: yesterday, Playcount: 5},
		{ID: "t-done_d2", TrackID: "t-done", Date: now, Playcount: 50},
	})
	require.NoError(t, err)

	// t-done already has a usable spectrogram.
	require.NoError(t, store.CreateSpectrogram(&Spectrogram{
		TrackID: "t-done", SpecType: "mel", HopSize: 512, WindowSize: 2048, MelBands: 128, Data: []byte{1},
	}))

	refs, err := store.RisingTracksMissingSpectrograms(30, 0, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "t-rising", refs[0].ID)
	assert.Equal(t, "https://cdn.example/rising.mp3", refs[0].PreviewURL)
}

func TestSpectrogramsByTrackIDsFiltersOnParams(t *testing.T) {
	store := newTestStore(t)

	params := SpectrogramParams{SpecType: "mel", HopSize: 512, WindowSize: 2048, MelBands: 128}
	require.NoError(t, store.CreateSpectrogram(&Spectrogram{
		TrackID: "t1", SpecType: "mel", HopSize: 512, WindowSize: 2048, MelBands: 128, Data: []byte{1, 2},
	}))
	require.NoError(t, store.CreateSpectrogram(&Spectrogram{
		TrackID: "t1", SpecType: "mel", HopSize: 256, WindowSize: 1024, MelBands: 64, Data: []byte{3},
	}))

	specs, err := store.SpectrogramsByTrackIDs([]string{"t1", "t2"}, params)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, []byte{1, 2}, specs[0].Data)

	require.NoError(t, store.MarkSpectrogramCorrupt(specs[0].ID))
	specs, err = store.SpectrogramsByTrackIDs([]string{"t1"}, params)
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestCandidateDistancePairs(t *testing.T) {
	store := newTestStore(t)

	recentRelease := time.Now().AddDate(0, 0, -10)
	_, err := store.CreateAlbums([]Album{{ID: "al1", Name: "New", ReleaseDate: recentRelease}})
	require.NoError(t, err)
	_, err = store.CreateTracks([]Track{
		{ID: "t-lib", AlbumID: "al1"},
		{ID: "t-hit1", AlbumID: "al1"},
		{ID: "t-hit2", AlbumID: "al1"},
	})
	require.NoError(t, err)

	// The library track needs a usable spectrogram to participate.
	require.NoError(t, store.CreateSpectrogram(&Spectrogram{
		TrackID: "t-lib", SpecType: "mel", HopSize: 512, WindowSize: 2048, MelBands: 128, Data: []byte{1},
	}))
	_, err = store.InsertEdges(EdgeTrackUser, []EdgePair{{PrimaryID: "u1", RelatedID: "t-lib"}})
	require.NoError(t, err)

	_, err = store.CreateTrackPredictions([]TrackPrediction{
		{TrackID: "t-hit1", ModelID: "m1", Date: time.Now(), Prediction: 1, Probability: 0.9},
		{TrackID: "t-hit2", ModelID: "m1", Date: time.Now(), Prediction: 1, Probability: 0.8},
	})
	require.NoError(t, err)

	opts := CandidatePairOpts{
		LagDays:          30,
		DaysSinceRelease: 180,
		HitLimit:         100,
		HitThreshold:     0.5,
		ModelID:          "m1",
		DistanceType:     "euclidean",
		Limit:            100,
	}
	pairs, err := store.CandidateDistancePairs(opts)
	require.NoError(t, err)
	assert.ElementsMatch(t, []TrackPair{
		{SrcID: "t-hit1", TgtID: "t-lib"},
		{SrcID: "t-hit2", TgtID: "t-lib"},
	}, pairs)

	// A stored distance excludes the pair even when the row predates the
	// ordering invariant and carries the larger id as src.
	require.NoError(t, store.DB.Create(&TrackDistance{
		ID:           "t-lib_t-hit1_m1_euclidean",
		SrcID:        "t-lib",
		TgtID:        "t-hit1",
		ModelID:      "m1",
		DistanceType: "euclidean",
		Distance:     0.3,
	}).Error)
	pairs, err = store.CandidateDistancePairs(opts)
	require.NoError(t, err)
	assert.Equal(t, []TrackPair{{SrcID: "t-hit2", TgtID: "t-lib"}}, pairs)

	// Restricting to a user with no library tracks yields nothing.
	opts.UserIDs = []string{"nobody"}
	pairs, err = store.CandidateDistancePairs(opts)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestCandidateDistancePairsScopedByModelAndMetric(t *testing.T) {
	store := newTestStore(t)

	recentRelease := time.Now().AddDate(0, 0, -10)
	_, err := store.CreateAlbums([]Album{{ID: "al1", Name: "New", ReleaseDate: recentRelease}})
	require.NoError(t, err)
	_, err = store.CreateTracks([]Track{
		{ID: "t-lib", AlbumID: "al1"},
		{ID: "t-hit", AlbumID: "al1"},
	})
	require.NoError(t, err)
	require.NoError(t, store.CreateSpectrogram(&Spectrogram{
		TrackID: "t-lib", SpecType: "mel", HopSize: 512, WindowSize: 2048, MelBands: 128, Data: []byte{1},
	}))
	_, err = store.InsertEdges(EdgeTrackUser, []EdgePair{{PrimaryID: "u1", RelatedID: "t-lib"}})
	require.NoError(t, err)
	_, err = store.CreateTrackPredictions([]TrackPrediction{
		{TrackID: "t-hit", ModelID: "m1", Date: time.Now(), Prediction: 1, Probability: 0.9},
	})
	require.NoError(t, err)

	// A distance computed under a different model leaves the pair open for
	// the requested model.
	_, err = store.CreateTrackDistance("t-lib", "t-hit", "m0", "euclidean", 0.3)
	require.NoError(t, err)

	opts := CandidatePairOpts{
		LagDays:          30,
		DaysSinceRelease: 180,
		HitLimit:         100,
		HitThreshold:     0.5,
		ModelID:          "m1",
		DistanceType:     "euclidean",
		Limit:            100,
	}
	pairs, err := store.CandidateDistancePairs(opts)
	require.NoError(t, err)
	assert.Equal(t, []TrackPair{{SrcID: "t-hit", TgtID: "t-lib"}}, pairs)

	// Once the pair is scored under the requested model and metric it is
	// excluded.
	_, err = store.CreateTrackDistance("t-lib", "t-hit", "m1", "euclidean", 0.3)
	require.NoError(t, err)
	pairs, err = store.CandidateDistancePairs(opts)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestCreateTrackUsersKeepsFirstWrite(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateTracks([]Track{{ID: "t1"}, {ID: "t2"}})
	require.NoError(t, err)
	require.NoError(t, store.CreatePlatformUser(&PlatformUser{ID: "u1"}))

	n, err := store.CreateTrackUsers([]TrackUser{
		{TrackID: "t1", UserID: "u1", TopTrack: true, Source: "top-tracks"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Re-linking an existing pair is ignored and does not overwrite the
	// original flags.
	n, err = store.CreateTrackUsers([]TrackUser{
		{TrackID: "t1", UserID: "u1", TopTrack: false, Source: "playlist"},
		{TrackID: "t2", UserID: "u1", TopTrack: false, Source: "playlist"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var row TrackUser
	require.NoError(t, store.DB.First(&row, "track_id = ? AND user_id = ?", "t1", "u1").Error)
	assert.True(t, row.TopTrack)
	assert.Equal(t, "top-tracks", row.Source)

	ids, err := store.UserTrackIDs("u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, ids)
}

func TestTracksMissingPredictions(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateTracks([]Track{{ID: "t1"}, {ID: "t2"}})
	require.NoError(t, err)
	for _, id := range []string{"t1", "t2"} {
		require.NoError(t, store.CreateSpectrogram(&Spectrogram{
			TrackID: id, SpecType: "mel", HopSize: 512, WindowSize: 2048, MelBands: 128, Data: []byte{1},
		}))
	}
	yesterday := time.Now().AddDate(0, 0, -1)
	_, err = store.CreateTrackPlaycounts([]TrackPlaycount{
		{ID: "t1_d1", TrackID: "t1", Date: yesterday, Playcount: 10},
		{ID: "t1_d2", TrackID: "t1", Date: time.Now(), Playcount: 90},
		{ID: "t2_d1", TrackID: "t2", Date: yesterday, Playcount: 10},
		{ID: "t2_d2", TrackID: "t2", Date: time.Now(), Playcount: 90},
	})
	require.NoError(t, err)

	_, err = store.CreateTrackPredictions([]TrackPrediction{
		{TrackID: "t1", ModelID: "m1", Date: time.Now(), Prediction: 1, Probability: 0.7},
	})
	require.NoError(t, err)

	ids, err := store.TracksMissingPredictions("m1", 30, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, ids)

	// A different model has no predictions yet, so both tracks qualify.
	ids, err = store.TracksMissingPredictions("m2", 30, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids)
}
