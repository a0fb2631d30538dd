package datastore

import (
	"github.com/soundscout/soundscout-go/internal/errors"
)

// GetPlaylist returns the playlist with the given id, or nil if absent.
func (ds *DataStore) GetPlaylist(id string) (*Playlist, error) {
	return getByID[Playlist](ds, id)
}

// CreatePlaylist inserts a playlist, skipping silently if it already exists.
func (ds *DataStore) CreatePlaylist(playlist *Playlist) error {
	return ds.createIdempotent("playlists", playlist)
}

// PopularPlaylists returns playlist ids ordered by their highest observed
// follower count, the candidate set for the playlist track scrape.
func (ds *DataStore) PopularPlaylists(skip, limit int) ([]string, error) {
	var ids []string
	err := ds.DB.Raw(`
		SELECT p.id
		FROM playlists p
		LEFT JOIN playlist_follower_counts pf ON pf.playlist_id = p.id
		GROUP BY p.id
		ORDER BY COALESCE(MAX(pf.followers), 0) DESC, p.id
		LIMIT ? OFFSET ?`, limit, skip).Scan(&ids).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ids, nil
}

// CreatePlaylistFollowerCount records a follower-count observation.
func (ds *DataStore) CreatePlaylistFollowerCount(count *PlaylistFollowerCount) error {
	return ds.createIdempotent("playlist_follower_counts", count)
}

// CreatePlatformUser inserts a platform user, skipping if present.
func (ds *DataStore) CreatePlatformUser(user *PlatformUser) error {
	return ds.createIdempotent("platform_users", user)
}

// CreateTrackUsers links tracks to a user's library. Rows carry the top-track
// flag and the ingestion source, so they bypass the generic edge insert which
// only knows the two key columns. Existing links keep their original flags.
func (ds *DataStore) CreateTrackUsers(rows []TrackUser) (int, error) {
	return createMulti(ds, "track_users", rows)
}

// UserTrackIDs returns the ids of all tracks already linked to a user.
func (ds *DataStore) UserTrackIDs(userID string) ([]string, error) {
	var ids []string
	err := ds.DB.Model(&TrackUser{}).
		Where("user_id = ?", userID).
		Pluck("track_id", &ids).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ids, nil
}

// CreateSearchTerm inserts a search term, skipping if present.
func (ds *DataStore) CreateSearchTerm(term *SearchTerm) error {
	return ds.createIdempotent("search_terms", term)
}

// ListPlaylists pages through playlists for the read API.
func (ds *DataStore) ListPlaylists(skip, limit int) ([]Playlist, error) {
	return list[Playlist](ds, skip, limit)
}
