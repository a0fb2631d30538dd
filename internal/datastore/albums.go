package datastore

import (
	"time"

	"github.com/soundscout/soundscout-go/internal/errors"
)

// GetAlbum returns the album with the given id, or nil if absent.
func (ds *DataStore) GetAlbum(id string) (*Album, error) {
	return getByID[Album](ds, id)
}

// CreateAlbum inserts an album, skipping silently if it already exists.
func (ds *DataStore) CreateAlbum(album *Album) error {
	return ds.createIdempotent("albums", album)
}

// CreateAlbums bulk-inserts albums, returning the number actually written.
func (ds *DataStore) CreateAlbums(albums []Album) (int, error) {
	return createMulti(ds, "albums", albums)
}

// UpdateAlbums upserts albums, overwriting stored metadata with the incoming
// rows.
func (ds *DataStore) UpdateAlbums(albums []Album) (int, error) {
	return upsertMulti(ds, "albums", albums)
}

// MissingAlbumIDs returns the ids from the input that have no album row.
func (ds *DataStore) MissingAlbumIDs(ids []string) ([]string, error) {
	return missingIDs[Album](ds, ids)
}

// AlbumsMissingMetadata returns ids of albums by verified artists in the
// release window that still lack cover art or label information.
func (ds *DataStore) AlbumsMissingMetadata(minDate, maxDate time.Time, skip, limit int) ([]string, error) {
	var ids []string
	err := ds.DB.Raw(`
		SELECT al.id
		FROM albums al
		JOIN album_artists aa ON aa.album_id = al.id
		JOIN artists a ON a.id = aa.artist_id AND a.verified = ?
		WHERE al.release_date BETWEEN ? AND ?
		  AND (al.cover = '' OR al.label_id = '')
		GROUP BY al.id, al.release_date
		ORDER BY al.release_date DESC
		LIMIT ? OFFSET ?`, true, minDate, maxDate, limit, skip).Scan(&ids).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ids, nil
}

// AlbumsMissingPlaycounts returns ids of albums in the release window whose
// tracks have no playcount observations yet.
func (ds *DataStore) AlbumsMissingPlaycounts(minDate, maxDate time.Time, verifiedOnly bool, skip, limit int) ([]string, error) {
	query := `
		SELECT al.id
		FROM albums al
		JOIN tracks t ON t.album_id = al.id
		LEFT JOIN track_playcounts tp ON tp.track_id = t.id`
	args := []any{}
	if verifiedOnly {
		query += `
		JOIN album_artists aa ON aa.album_id = al.id
		JOIN artists a ON a.id = aa.artist_id AND a.verified = ?`
		args = append(args, true)
	}
	query += `
		WHERE al.release_date BETWEEN ? AND ?
		GROUP BY al.id, al.release_date
		HAVING COUNT(tp.id) = 0
		ORDER BY al.release_date DESC
		LIMIT ? OFFSET ?`
	args = append(args, minDate, maxDate, limit, skip)

	var ids []string
	if err := ds.DB.Raw(query, args...).Scan(&ids).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ids, nil
}

// ListAlbums pages through albums for the read API.
func (ds *DataStore) ListAlbums(skip, limit int) ([]Album, error) {
	return list[Album](ds, skip, limit)
}
