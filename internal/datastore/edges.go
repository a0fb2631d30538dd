package datastore

import (
	"fmt"

	"github.com/soundscout/soundscout-go/internal/errors"
)

// edgeColumns maps an edge kind to its table and key columns. The first
// column is the "primary" (owning) side used by the association resolver.
type edgeColumns struct {
	table   string
	primary string
	related string
}

func columnsFor(kind EdgeKind) (edgeColumns, error) {
	switch kind {
	case EdgeAlbumArtist:
		return edgeColumns{"album_artists", "album_id", "artist_id"}, nil
	case EdgeTrackArtist:
		return edgeColumns{"track_artists", "track_id", "artist_id"}, nil
	case EdgeTrackPlaylist:
		return edgeColumns{"track_playlists", "track_id", "playlist_id"}, nil
	case EdgeGenreArtist:
		return edgeColumns{"genre_artists", "artist_id", "genre_id"}, nil
	case EdgeTrackUser:
		return edgeColumns{"track_users", "user_id", "track_id"}, nil
	case EdgeTermPlaylist:
		return edgeColumns{"term_playlists", "term_id", "playlist_id"}, nil
	default:
		return edgeColumns{}, fmt.Errorf("unknown edge kind %q", kind)
	}
}

// ExistingEdges bulk-fetches all edges whose primary key is in primaryIDs,
// one query for the whole input set.
func (ds *DataStore) ExistingEdges(kind EdgeKind, primaryIDs []string) ([]EdgePair, error) {
	if len(primaryIDs) == 0 {
		return nil, nil
	}
	cols, err := columnsFor(kind)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	var pairs []EdgePair
	query := fmt.Sprintf(
		"SELECT %s AS primary_id, %s AS related_id FROM %s WHERE %s IN ?",
		cols.primary, cols.related, cols.table, cols.primary)
	if err := ds.DB.Raw(query, primaryIDs).Scan(&pairs).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("edge_kind", string(kind)).
			Build()
	}
	return pairs, nil
}

// InsertEdges bulk-inserts edges with insert-or-ignore semantics and returns
// the number actually written. Concurrent resolvers racing on the same
// missing edge rely on the composite primary key to make the loser a no-op.
func (ds *DataStore) InsertEdges(kind EdgeKind, pairs []EdgePair) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}
	switch kind {
	case EdgeAlbumArtist:
		rows := make([]AlbumArtist, len(pairs))
		for i, p := range pairs {
			rows[i] = AlbumArtist{AlbumID: p.PrimaryID, ArtistID: p.RelatedID}
		}
		return createMulti(ds, "album_artists", rows)
	case EdgeTrackArtist:
		rows := make([]TrackArtist, len(pairs))
		for i, p := range pairs {
			rows[i] = TrackArtist{TrackID: p.PrimaryID, ArtistID: p.RelatedID}
		}
		return createMulti(ds, "track_artists", rows)
	case EdgeTrackPlaylist:
		rows := make([]TrackPlaylist, len(pairs))
		for i, p := range pairs {
			rows[i] = TrackPlaylist{TrackID: p.PrimaryID, PlaylistID: p.RelatedID}
		}
		return createMulti(ds, "track_playlists", rows)
	case EdgeGenreArtist:
		rows := make([]GenreArtist, len(pairs))
		for i, p := range pairs {
			rows[i] = GenreArtist{ArtistID: p.PrimaryID, GenreID: p.RelatedID}
		}
		return createMulti(ds, "genre_artists", rows)
	case EdgeTrackUser:
		rows := make([]TrackUser, len(pairs))
		for i, p := range pairs {
			rows[i] = TrackUser{UserID: p.PrimaryID, TrackID: p.RelatedID}
		}
		return createMulti(ds, "track_users", rows)
	case EdgeTermPlaylist:
		rows := make([]TermPlaylist, len(pairs))
		for i, p := range pairs {
			rows[i] = TermPlaylist{TermID: p.PrimaryID, PlaylistID: p.RelatedID}
		}
		return createMulti(ds, "term_playlists", rows)
	default:
		return 0, errors.Newf("unknown edge kind %q", kind).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
}

// EnsureGenres creates any genre rows missing from the input set, so genre
// edges can be inserted without foreign-key surprises. Returns the number of
// genres created.
func (ds *DataStore) EnsureGenres(ids []string) (int, error) {
	missing, err := missingIDs[Genre](ds, ids)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}
	rows := make([]Genre, len(missing))
	for i, id := range missing {
		rows[i] = Genre{ID: id}
	}
	return createMulti(ds, "genres", rows)
}
