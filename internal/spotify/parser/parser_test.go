package parser

import (
	"testing"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obj(t *testing.T, raw string) *jason.Object {
	t.Helper()
	o, err := jason.NewObjectFromBytes([]byte(raw))
	require.NoError(t, err)
	return o
}

func TestURIToID(t *testing.T) {
	assert.Equal(t, "33n9hKYymXgXV0p6j2zYp9", URIToID("spotify:track:33n9hKYymXgXV0p6j2zYp9"))
	assert.Empty(t, URIToID("spotify:track"))
	assert.Empty(t, URIToID(""))
	assert.Empty(t, URIToID("spotify:user:owner:playlist:abc"))
}

func TestCombineDate(t *testing.T) {
	tests := []struct {
		name        string
		releaseDate string
		precision   string
		year        int64
		month       int64
		day         int64
		want        time.Time
	}{
		{
			name: "day precision", releaseDate: "2019-11-25", precision: "day",
			want: time.Date(2019, 11, 25, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "month precision", releaseDate: "1999-05", precision: "month",
			want: time.Date(1999, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "year precision", releaseDate: "1999", precision: "year",
			want: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "year precision zero year", releaseDate: "0", precision: "year",
			want: time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "client fields", year: 2020, month: 7, day: 15,
			want: time.Date(2020, 7, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "client fields missing month and day", year: 2020,
			want: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "client fields all missing",
			want: time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CombineDate(tt.releaseDate, tt.precision, tt.year, tt.month, tt.day)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}

	_, err := CombineDate("not-a-year", "year", 0, 0, 0)
	assert.Error(t, err)
}

func TestTrackFromJSONAPIShape(t *testing.T) {
	track := TrackFromJSON(obj(t, `{
		"id": "t1",
		"name": "Song",
		"duration_ms": 201000,
		"track_number": 3,
		"disc_number": 2,
		"explicit": true,
		"external_ids": {"isrc": "USUM71900001"},
		"preview_url": "https://p.example/t1.mp3",
		"album": {"id": "a1"}
	}`), "", 1)
	require.NotNil(t, track)
	assert.Equal(t, "t1", track.ID)
	assert.Equal(t, "a1", track.AlbumID)
	assert.Equal(t, 6, track.TrackNumber, "in-disc number scaled by disc")
	assert.Equal(t, 201000, track.DurationMs)
	assert.Equal(t, "USUM71900001", track.ISRC)
	require.NotNil(t, track.Explicit)
	assert.True(t, *track.Explicit)
}

func TestTrackFromJSONClientShape(t *testing.T) {
	track := TrackFromJSON(obj(t, `{
		"uri": "spotify:track:t2",
		"name": "B-Side",
		"duration": 95000,
		"number": 4
	}`), "a9", 3)
	require.NotNil(t, track)
	assert.Equal(t, "t2", track.ID)
	assert.Equal(t, "a9", track.AlbumID)
	assert.Equal(t, 12, track.TrackNumber)
	assert.Equal(t, 95000, track.DurationMs)
}

func TestTrackFromJSONUnresolvable(t *testing.T) {
	assert.Nil(t, TrackFromJSON(obj(t, `{"name": "no id"}`), "a1", 1))
	assert.Nil(t, TrackFromJSON(obj(t, `{"id": "t1"}`), "", 1), "no album")
	assert.Nil(t, TrackFromJSON(nil, "a1", 1))
}

func TestTracksFromDiscs(t *testing.T) {
	album := obj(t, `{
		"discs": [
			{"number": 1, "tracks": [{"uri": "spotify:track:t1", "number": 1}]},
			{"tracks": [{"uri": "spotify:track:t2", "number": 1}]}
		]
	}`)
	discs, err := album.GetObjectArray("discs")
	require.NoError(t, err)

	tracks := TracksFromDiscs(discs, "a1")
	require.Len(t, tracks, 2)
	assert.Equal(t, 1, tracks[0].TrackNumber)
	assert.Equal(t, 2, tracks[1].TrackNumber, "disc without number falls back to position")
}

func TestPlaycountFromJSON(t *testing.T) {
	date := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	tp := PlaycountFromJSON(obj(t, `{"uri": "spotify:track:t1", "playcount": 12345, "popularity": 61}`), date)
	require.NotNil(t, tp)
	assert.Equal(t, "t1_2026-08-29", tp.ID)
	assert.Equal(t, int64(12345), tp.Playcount)
	assert.Equal(t, 61, tp.Popularity)

	assert.Nil(t, PlaycountFromJSON(obj(t, `{"uri": "spotify:track:t1", "playcount": 0}`), date),
		"zero playcount is unresolvable")
	assert.Nil(t, PlaycountFromJSON(obj(t, `{"playcount": 10}`), date), "missing uri")
}

func TestArtistFromInfo(t *testing.T) {
	artist := ArtistFromInfo(obj(t, `{
		"uri": "spotify:artist:ar1",
		"info": {"name": "The Act", "verified": true},
		"upcoming_concerts": {"inactive_artist": false}
	}`))
	require.NotNil(t, artist)
	assert.Equal(t, "ar1", artist.ID)
	assert.Equal(t, "The Act", artist.Name)
	require.NotNil(t, artist.Verified)
	assert.True(t, *artist.Verified)
	require.NotNil(t, artist.Active)
	assert.True(t, *artist.Active)

	assert.Nil(t, ArtistFromInfo(obj(t, `{"uri": "spotify:artist:ar1"}`)), "info block required")
	assert.Nil(t, ArtistFromInfo(obj(t, `{"info": {"name": "x"}}`)), "uri required")
}

func TestArtistsFromTrack(t *testing.T) {
	artists := ArtistsFromTrack(obj(t, `{
		"track": {
			"artists": [{"id": "ar1", "name": "A"}],
			"album": {"artists": [{"id": "ar2", "name": "B"}]}
		}
	}`))
	require.Len(t, artists, 2)
	assert.Equal(t, "ar1", artists[0].ID)
	assert.Equal(t, "ar2", artists[1].ID)
}

func TestAlbumFromJSONAPIShape(t *testing.T) {
	album := AlbumFromJSON(obj(t, `{
		"id": "a1",
		"name": "LP",
		"album_type": "album",
		"release_date": "2021-03-12",
		"release_date_precision": "day",
		"total_tracks": 11,
		"label": "Big Label",
		"images": [
			{"url": "https://img.example/640.jpg"},
			{"url": "https://img.example/64.jpg"}
		]
	}`))
	require.NotNil(t, album)
	assert.Equal(t, "a1", album.ID)
	assert.Equal(t, "album", album.Type)
	assert.Equal(t, 11, album.TotalTracks)
	assert.Equal(t, "Big Label", album.LabelID)
	assert.Equal(t, "https://img.example/64.jpg", album.Cover, "smallest image wins")
	assert.Equal(t, time.Date(2021, 3, 12, 0, 0, 0, 0, time.UTC), album.ReleaseDate)
}

func TestAlbumsFromReleases(t *testing.T) {
	releases := obj(t, `{
		"singles": {"releases": [
			{"uri": "spotify:album:a1", "name": "One", "year": 2024},
			{"name": "no uri"}
		]},
		"albums": {"releases": [{"uri": "spotify:album:a2", "name": "Two", "year": 2023}]},
		"compilations": {"releases": [{"uri": "spotify:album:a3", "name": "Skip me"}]}
	}`)

	albums := AlbumsFromReleases(releases, DefaultReleaseGroups())
	require.Len(t, albums, 2)
	assert.Equal(t, "a1", albums[0].ID)
	assert.Equal(t, "single", albums[0].Type, "section overrides the type")
	assert.Equal(t, "a2", albums[1].ID)
	assert.Equal(t, "album", albums[1].Type)
}

func TestPlaylistFromJSON(t *testing.T) {
	fromSearch := PlaylistFromJSON(obj(t, `{
		"uri": "spotify:user:owner1:playlist:p1",
		"name": "Hits"
	}`))
	require.NotNil(t, fromSearch)
	assert.Equal(t, "p1", fromSearch.ID)
	assert.Equal(t, "owner1", fromSearch.OwnerID)

	fromAPI := PlaylistFromJSON(obj(t, `{
		"id": "p2",
		"name": "Other",
		"owner": {"id": "owner2"}
	}`))
	require.NotNil(t, fromAPI)
	assert.Equal(t, "p2", fromAPI.ID)
	assert.Equal(t, "owner2", fromAPI.OwnerID)

	assert.Nil(t, PlaylistFromJSON(obj(t, `{"name": "anonymous"}`)))
}

func TestFollowerCountFromPlaylist(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"search spelling", `{"uri": "spotify:user:o:playlist:p1", "followersCount": 42}`, 42},
		{"profile spelling", `{"id": "p1", "followers_count": 7}`, 7},
		{"api nesting", `{"id": "p1", "followers": {"total": 9000}}`, 9000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := FollowerCountFromPlaylist(obj(t, tt.raw))
			require.NotNil(t, count)
			assert.Equal(t, "p1", count.PlaylistID)
			assert.Equal(t, tt.want, count.Followers)
		})
	}

	assert.Nil(t, FollowerCountFromPlaylist(obj(t, `{"id": "p1"}`)), "no count field")
}

func TestUserFromPlaylistTrack(t *testing.T) {
	user := UserFromPlaylistTrack(obj(t, `{"added_by": {"id": "u1"}}`))
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)

	curated := UserFromPlaylistTrack(obj(t, `{"added_by": {"id": ""}}`))
	require.NotNil(t, curated)
	assert.Equal(t, "spotify", curated.ID, "curated playlists map to the platform user")
}
