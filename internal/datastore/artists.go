package datastore

import (
	"github.com/soundscout/soundscout-go/internal/errors"
)

// GetArtist returns the artist with the given id, or nil if absent.
func (ds *DataStore) GetArtist(id string) (*Artist, error) {
	return getByID[Artist](ds, id)
}

// CreateArtist inserts an artist, skipping silently if it already exists.
func (ds *DataStore) CreateArtist(artist *Artist) error {
	return ds.createIdempotent("artists", artist)
}

// CreateArtists bulk-inserts artists, returning the number actually written.
func (ds *DataStore) CreateArtists(artists []Artist) (int, error) {
	return createMulti(ds, "artists", artists)
}

// UpdateArtistStatus copies verified/active from incoming onto existing when
// the incoming record actually carries those fields. The detail endpoints are
// the only source of truth for status, so nil incoming values never clear a
// previously stored one.
func (ds *DataStore) UpdateArtistStatus(existing, incoming *Artist) error {
	changes := map[string]any{}
	if incoming.Verified != nil {
		changes["verified"] = *incoming.Verified
	}
	if incoming.Active != nil {
		changes["active"] = *incoming.Active
	}
	if incoming.Name != "" && incoming.Name != existing.Name {
		changes["name"] = incoming.Name
	}
	if len(changes) == 0 {
		return nil
	}
	if err := ds.DB.Model(existing).Updates(changes).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("artist_id", existing.ID).
			Build()
	}
	return nil
}

// MissingArtistIDs returns the ids from the input that have no artist row.
func (ds *DataStore) MissingArtistIDs(ids []string) ([]string, error) {
	return missingIDs[Artist](ds, ids)
}

// ArtistsMissingData returns ids of artists missing status, genres or links,
// the candidate set for the artist update flow. Paginated; callers shard
// large backfills across disjoint skip/limit windows.
func (ds *DataStore) ArtistsMissingData(skip, limit int) ([]string, error) {
	var ids []string
	err := ds.DB.Raw(`
		SELECT a.id
		FROM artists a
		LEFT JOIN genre_artists ga ON ga.artist_id = a.id
		LEFT JOIN artist_links al ON al.artist_id = a.id
		WHERE a.verified IS NULL OR ga.artist_id IS NULL OR al.artist_id IS NULL
		GROUP BY a.id
		ORDER BY a.id
		LIMIT ? OFFSET ?`, limit, skip).Scan(&ids).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ids, nil
}

// ArtistHasGenres reports whether any genre edge exists for the artist.
func (ds *DataStore) ArtistHasGenres(id string) (bool, error) {
	var count int64
	if err := ds.DB.Model(&GenreArtist{}).Where("artist_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ArtistHasLinks reports whether any link row exists for the artist.
func (ds *DataStore) ArtistHasLinks(id string) (bool, error) {
	var count int64
	if err := ds.DB.Model(&ArtistLink{}).Where("artist_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateArtistLinks bulk-inserts artist links.
func (ds *DataStore) CreateArtistLinks(links []ArtistLink) (int, error) {
	return createMulti(ds, "artist_links", links)
}

// ListArtists pages through artists for the read API.
func (ds *DataStore) ListArtists(skip, limit int) ([]Artist, error) {
	return list[Artist](ds, skip, limit)
}
