package parser

import (
	"github.com/antonholmquist/jason"

	"github.com/soundscout/soundscout-go/internal/datastore"
)

// TrackFromJSON canonicalizes a track object from either the API shape
// (track_number/disc_number, duration_ms, external_ids.isrc, nested album)
// or the client disc-listing shape (number, duration, no album). A track is
// only resolvable with both an identifier and an album: albumID overrides
// any nested album, and discNum positions client tracks within multi-disc
// releases. Unresolvable inputs yield nil.
//
// The stored track number is the in-disc ordinal scaled by the disc number,
// so disc 2 track 3 sorts after every disc 1 track on typical disc sizes.
func TrackFromJSON(obj *jason.Object, albumID string, discNum int) *datastore.Track {
	if obj == nil {
		return nil
	}

	id, _ := obj.GetString("id")
	if id == "" {
		uri, _ := obj.GetString("uri")
		id = URIToID(uri)
	}
	if id == "" {
		return nil
	}

	if albumID == "" {
		albumID, _ = obj.GetString("album", "id")
	}
	if albumID == "" {
		return nil
	}

	track := &datastore.Track{ID: id, AlbumID: albumID}
	if name, err := obj.GetString("name"); err == nil {
		track.Name = name
	}

	if duration, err := obj.GetInt64("duration_ms"); err == nil {
		track.DurationMs = int(duration)
	} else if duration, err := obj.GetInt64("duration"); err == nil {
		track.DurationMs = int(duration)
	}

	if number, err := obj.GetInt64("track_number"); err == nil {
		disc, derr := obj.GetInt64("disc_number")
		if derr != nil || disc < 1 {
			disc = 1
		}
		track.TrackNumber = int(number * disc)
	} else if number, err := obj.GetInt64("number"); err == nil {
		if discNum < 1 {
			discNum = 1
		}
		track.TrackNumber = int(number) * discNum
	}

	if explicit, err := obj.GetBoolean("explicit"); err == nil {
		track.Explicit = &explicit
	}
	if isrc, err := obj.GetString("external_ids", "isrc"); err == nil {
		track.ISRC = isrc
	}
	if preview, err := obj.GetString("preview_url"); err == nil {
		track.PreviewURL = preview
	}

	return track
}

// TracksFromList canonicalizes a flat track listing, skipping unresolvable
// entries.
func TracksFromList(objs []*jason.Object, albumID string, discNum int) []datastore.Track {
	tracks := make([]datastore.Track, 0, len(objs))
	for _, obj := range objs {
		if t := TrackFromJSON(obj, albumID, discNum); t != nil {
			tracks = append(tracks, *t)
		}
	}
	return tracks
}

// TracksFromDiscs canonicalizes the disc listing of a client album object.
// The disc's own number field positions its tracks; discs that omit it fall
// back to their position in the listing.
func TracksFromDiscs(discs []*jason.Object, albumID string) []datastore.Track {
	var tracks []datastore.Track
	for i, disc := range discs {
		discNum := i + 1
		if number, err := disc.GetInt64("number"); err == nil && number > 0 {
			discNum = int(number)
		}
		trackObjs, err := disc.GetObjectArray("tracks")
		if err != nil {
			continue
		}
		tracks = append(tracks, TracksFromList(trackObjs, albumID, discNum)...)
	}
	return tracks
}

// TracksFromReleases canonicalizes every track of the requested release
// groups in the client artist-discography view.
func TracksFromReleases(obj *jason.Object, include map[string]bool) []datastore.Track {
	if obj == nil {
		return nil
	}

	var tracks []datastore.Track
	for _, group := range releaseGroups {
		if !include[group.key] {
			continue
		}
		releases, err := obj.GetObjectArray(group.key, "releases")
		if err != nil {
			continue
		}
		for _, release := range releases {
			uri, _ := release.GetString("uri")
			albumID := URIToID(uri)
			if albumID == "" {
				continue
			}
			discs, err := release.GetObjectArray("discs")
			if err != nil {
				continue
			}
			tracks = append(tracks, TracksFromDiscs(discs, albumID)...)
		}
	}
	return tracks
}

// TracksFromPlaylist canonicalizes one page of an API playlist track
// listing, where each item wraps the track under a "track" key.
func TracksFromPlaylist(items []*jason.Object) []datastore.Track {
	var tracks []datastore.Track
	for _, item := range items {
		trackObj, err := item.GetObject("track")
		if err != nil {
			continue
		}
		if t := TrackFromJSON(trackObj, "", 1); t != nil {
			tracks = append(tracks, *t)
		}
	}
	return tracks
}
