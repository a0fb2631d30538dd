package parser

import (
	"github.com/antonholmquist/jason"

	"github.com/soundscout/soundscout-go/internal/datastore"
)

// AlbumFromJSON canonicalizes an album object from either the API shape
// (release_date string, images list, album_type) or the client shape
// (year/month/day integers, cover object, track_count). Objects without an
// identifier yield nil.
func AlbumFromJSON(obj *jason.Object) *datastore.Album {
	if obj == nil {
		return nil
	}
	if inner, err := obj.GetObject("album"); err == nil {
		obj = inner
	}

	id, _ := obj.GetString("id")
	if id == "" {
		uri, _ := obj.GetString("uri")
		id = URIToID(uri)
	}
	if id == "" {
		return nil
	}

	album := &datastore.Album{ID: id}
	if name, err := obj.GetString("name"); err == nil {
		album.Name = name
	}

	releaseDate, _ := obj.GetString("release_date")
	precision, _ := obj.GetString("release_date_precision")
	year, _ := obj.GetInt64("year")
	month, _ := obj.GetInt64("month")
	day, _ := obj.GetInt64("day")
	if date, err := CombineDate(releaseDate, precision, year, month, day); err == nil {
		album.ReleaseDate = date
	}

	if albumType, err := obj.GetString("album_type"); err == nil {
		album.Type = albumType
	} else if albumType, err := obj.GetString("type"); err == nil {
		album.Type = albumType
	}

	if total, err := obj.GetInt64("total_tracks"); err == nil {
		album.TotalTracks = int(total)
	} else if total, err := obj.GetInt64("track_count"); err == nil {
		album.TotalTracks = int(total)
	}

	// API objects list covers largest first; keep the smallest. Client
	// objects carry a single cover URI.
	if images, err := obj.GetObjectArray("images"); err == nil && len(images) > 0 {
		if url, err := images[len(images)-1].GetString("url"); err == nil {
			album.Cover = url
		}
	} else if cover, err := obj.GetString("cover", "uri"); err == nil {
		album.Cover = cover
	}

	if label, err := obj.GetString("label"); err == nil {
		album.LabelID = label
	}

	return album
}

// AlbumFromTrack canonicalizes the album nested in an API track object.
// Playlist items wrap the track under a "track" key; both shapes are
// accepted.
func AlbumFromTrack(obj *jason.Object) *datastore.Album {
	if obj == nil {
		return nil
	}
	if inner, err := obj.GetObject("track"); err == nil {
		obj = inner
	}
	albumObj, err := obj.GetObject("album")
	if err != nil {
		return nil
	}
	return AlbumFromJSON(albumObj)
}

// releaseGroups enumerates the discography sections of the client
// artist-discography view in the order they are parsed.
var releaseGroups = []struct {
	key         string
	releaseType string
}{
	{"singles", "single"},
	{"albums", "album"},
	{"compilations", "compilation"},
	{"appears_on", "appears_on"},
}

// AlbumsFromReleases canonicalizes the release groups of the client
// artist-discography view. Only the requested sections are read; entries
// without a URI are skipped.
func AlbumsFromReleases(obj *jason.Object, include map[string]bool) []datastore.Album {
	if obj == nil {
		return nil
	}

	var albums []datastore.Album
	for _, group := range releaseGroups {
		if !include[group.key] {
			continue
		}
		releases, err := obj.GetObjectArray(group.key, "releases")
		if err != nil {
			continue
		}
		for _, release := range releases {
			if uri, _ := release.GetString("uri"); uri == "" {
				continue
			}
			album := AlbumFromJSON(release)
			if album == nil {
				continue
			}
			album.Type = group.releaseType
			albums = append(albums, *album)
		}
	}
	return albums
}

// DefaultReleaseGroups is the section selection used by the ingestion flows:
// primary releases only, no compilations or appearances.
func DefaultReleaseGroups() map[string]bool {
	return map[string]bool{"singles": true, "albums": true}
}
