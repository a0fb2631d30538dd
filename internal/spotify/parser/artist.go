package parser

import (
	"time"

	"github.com/antonholmquist/jason"

	"github.com/soundscout/soundscout-go/internal/datastore"
)

// ArtistFromJSON canonicalizes a bare artist object of the kind that appears
// inside track, album and related-artist listings. It accepts either an "id"
// or a "uri" field; with neither it returns nil.
func ArtistFromJSON(obj *jason.Object) *datastore.Artist {
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

	artist := &datastore.Artist{ID: id}
	if name, err := obj.GetString("name"); err == nil {
		artist.Name = name
	}
	return artist
}

// ArtistFromInfo canonicalizes the client artist-info view, which carries
// verified and active status alongside the display name. Objects without an
// info block or a URI are unresolvable and yield nil.
func ArtistFromInfo(obj *jason.Object) *datastore.Artist {
	if obj == nil {
		return nil
	}
	uri, _ := obj.GetString("uri")
	id := URIToID(uri)
	if id == "" {
		return nil
	}
	info, err := obj.GetObject("info")
	if err != nil {
		return nil
	}

	artist := &datastore.Artist{ID: id}
	if name, err := info.GetString("name"); err == nil {
		artist.Name = name
	}
	if verified, err := info.GetBoolean("verified"); err == nil {
		artist.Verified = &verified
	}
	if inactive, err := obj.GetBoolean("upcoming_concerts", "inactive_artist"); err == nil {
		active := !inactive
		artist.Active = &active
	}
	return artist
}

// ArtistsFromList canonicalizes a list of artist objects, skipping entries
// that cannot be resolved to an identifier.
func ArtistsFromList(objs []*jason.Object) []datastore.Artist {
	artists := make([]datastore.Artist, 0, len(objs))
	for _, obj := range objs {
		if a := ArtistFromJSON(obj); a != nil {
			artists = append(artists, *a)
		}
	}
	return artists
}

// ArtistsFromTrack collects the track artists and, when present, the album
// artists of one API track object. Playlist items wrap the track under a
// "track" key; both shapes are accepted.
func ArtistsFromTrack(obj *jason.Object) []datastore.Artist {
	if obj == nil {
		return nil
	}
	if inner, err := obj.GetObject("track"); err == nil {
		obj = inner
	}

	var artists []datastore.Artist
	if trackArtists, err := obj.GetObjectArray("artists"); err == nil {
		artists = append(artists, ArtistsFromList(trackArtists)...)
	}
	if albumArtists, err := obj.GetObjectArray("album", "artists"); err == nil {
		artists = append(artists, ArtistsFromList(albumArtists)...)
	}
	return artists
}

// RelatedArtists canonicalizes the related-artist listing of the client
// artist-info view.
func RelatedArtists(obj *jason.Object) []datastore.Artist {
	if obj == nil {
		return nil
	}
	related, err := obj.GetObjectArray("related_artists", "artists")
	if err != nil {
		return nil
	}
	return ArtistsFromList(related)
}

// ArtistLinksFromInfo extracts the social links of the client artist-info
// view, stamped with today's date.
func ArtistLinksFromInfo(obj *jason.Object, artistID string) []datastore.ArtistLink {
	if obj == nil || artistID == "" {
		return nil
	}
	linksObj, err := obj.GetObject("autobiography", "links")
	if err != nil {
		return nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var links []datastore.ArtistLink
	for linkType, value := range linksObj.Map() {
		link, err := value.String()
		if err != nil || link == "" {
			continue
		}
		links = append(links, datastore.ArtistLink{
			Link:      link,
			ArtistID:  artistID,
			LinkType:  linkType,
			DateAdded: today,
		})
	}
	return links
}

// GenresFromAbout extracts the genre tags of an API artist object as genre
// entities.
func GenresFromAbout(obj *jason.Object) []datastore.Genre {
	if obj == nil {
		return nil
	}
	names, err := obj.GetStringArray("genres")
	if err != nil {
		return nil
	}
	genres := make([]datastore.Genre, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		genres = append(genres, datastore.Genre{ID: name})
	}
	return genres
}
