package parser

import (
	"time"

	"github.com/antonholmquist/jason"

	"github.com/soundscout/soundscout-go/internal/datastore"
)

// PlaylistFromJSON canonicalizes a playlist from either the search-result
// shape (five-segment URI carrying the owner) or the API shape (id plus
// owner object). Playlists without a resolvable identifier yield nil.
func PlaylistFromJSON(obj *jason.Object) *datastore.Playlist {
	if obj == nil {
		return nil
	}

	if uri, err := obj.GetString("uri"); err == nil {
		if ownerID, playlistID, ok := playlistURIParts(uri); ok {
			name, _ := obj.GetString("name")
			return &datastore.Playlist{ID: playlistID, OwnerID: ownerID, Name: name}
		}
	}

	id, _ := obj.GetString("id")
	if id == "" {
		return nil
	}
	playlist := &datastore.Playlist{ID: id}
	if name, err := obj.GetString("name"); err == nil {
		playlist.Name = name
	}
	if ownerID, err := obj.GetString("owner", "id"); err == nil {
		playlist.OwnerID = ownerID
	}
	return playlist
}

// PlaylistsFromSearch canonicalizes a page of playlist search results,
// skipping unresolvable entries.
func PlaylistsFromSearch(objs []*jason.Object) []datastore.Playlist {
	playlists := make([]datastore.Playlist, 0, len(objs))
	for _, obj := range objs {
		if p := PlaylistFromJSON(obj); p != nil {
			playlists = append(playlists, *p)
		}
	}
	return playlists
}

// FollowerCountFromPlaylist canonicalizes a playlist's follower count into a
// daily observation. Search results spell the count "followersCount", user
// profile views "followers_count", API objects nest it under "followers";
// all three are accepted. Playlists without a count yield nil.
func FollowerCountFromPlaylist(obj *jason.Object) *datastore.PlaylistFollowerCount {
	if obj == nil {
		return nil
	}

	var playlistID string
	if uri, err := obj.GetString("uri"); err == nil {
		_, playlistID, _ = playlistURIParts(uri)
	}
	if playlistID == "" {
		playlistID, _ = obj.GetString("id")
	}
	if playlistID == "" {
		return nil
	}

	followers, err := obj.GetInt64("followersCount")
	if err != nil {
		followers, err = obj.GetInt64("followers_count")
	}
	if err != nil {
		followers, err = obj.GetInt64("followers", "total")
	}
	if err != nil {
		return nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	return &datastore.PlaylistFollowerCount{
		ID:         dateStampID(playlistID, today),
		PlaylistID: playlistID,
		Date:       today,
		Followers:  int(followers),
	}
}

// UserFromSearchPlaylist canonicalizes the playlist owner out of a search
// result, whose five-segment URI carries the owner identifier.
func UserFromSearchPlaylist(obj *jason.Object) *datastore.PlatformUser {
	if obj == nil {
		return nil
	}
	uri, err := obj.GetString("uri")
	if err != nil {
		return nil
	}
	ownerID, _, ok := playlistURIParts(uri)
	if !ok {
		return nil
	}
	user := &datastore.PlatformUser{ID: ownerID}
	if author, err := obj.GetString("author"); err == nil {
		user.Name = author
	}
	return user
}

// UserFromPlaylistTrack canonicalizes the adding user of an API playlist
// item. Platform-curated playlists report an empty adder id, which maps to
// the platform's own user.
func UserFromPlaylistTrack(obj *jason.Object) *datastore.PlatformUser {
	if obj == nil {
		return nil
	}
	if addedBy, err := obj.GetObject("added_by"); err == nil {
		obj = addedBy
	}
	id, err := obj.GetString("id")
	if err != nil {
		return nil
	}
	if id == "" {
		id = "spotify"
	}
	return &datastore.PlatformUser{ID: id}
}
