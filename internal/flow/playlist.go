package flow

import (
	"context"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
	"github.com/soundscout/soundscout-go/internal/spotify/parser"
)

const (
	keyPlaylistID = "playlist_id"
	keyItems      = "items"
	keyTerm       = "term"
	keySearchDoc  = "search_doc"

	// playlistPageSize is the page size for playlist track listings.
	playlistPageSize = 100
	// searchPageSize is the page size for playlist search results.
	searchPageSize = 50
)

func (s *Service) registerPlaylistTasks() error {
	tasks := []*Task{
		{
			Name: "fetch_playlist_tracks", Queue: jobqueue.QueueDefault, TimeLimit: 30 * time.Second,
			Run:  s.fetchPlaylistTracks,
		},
		{
			Name: "push_playlist_tracks", Queue: jobqueue.QueueDefault, TimeLimit: 150 * time.Second,
			Run:  s.pushPlaylistTracks,
		},
		{
			Name: "flow_playlist_tracks", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Minute,
			Run:  s.flowPlaylistTracks,
		},
		{
			Name: "search_playlists", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Second,
			Run: func(ctx context.Context, args Payload) (Payload, error) {
				doc, err := s.client.SearchPlaylists(ctx, args.String(keyTerm), 0, searchPageSize)
				if err != nil {
					return nil, err
				}
				return Payload{keySearchDoc: doc}, nil
			},
		},
		{
			Name: "push_search_playlists", Queue: jobqueue.QueueShort, TimeLimit: 5 * time.Second,
			Run:  s.pushSearchPlaylists,
		},
		{
			Name: "flow_search_playlists", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Minute,
			Run:  s.flowSearchPlaylists,
		},
	}
	for _, task := range tasks {
		if err := s.registry.Register(task); err != nil {
			return err
		}
	}
	return nil
}

// fetchPlaylistTracks pages through a playlist's track listing up to the
// configured cap.
func (s *Service) fetchPlaylistTracks(ctx context.Context, args Payload) (Payload, error) {
	playlistID := args.String(keyPlaylistID)
	trackLimit := args.Int("track_limit", 300)

	var items []*jason.Object
	for offset := 0; offset < trackLimit; offset += playlistPageSize {
		doc, err := s.client.PlaylistTracks(ctx, playlistID, offset, playlistPageSize)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			break
		}
		page, err := doc.GetObjectArray(keyItems)
		if err != nil || len(page) == 0 {
			break
		}
		items = append(items, page...)
		if len(page) < playlistPageSize {
			break
		}
	}
	return Payload{keyItems: items, keyPlaylistID: playlistID}, nil
}

// pushPlaylistTracks persists one playlist's track listing: tracks and the
// artists and albums they reference, plus the playlist membership edges.
func (s *Service) pushPlaylistTracks(ctx context.Context, args Payload) (Payload, error) {
	playlistID := args.String(keyPlaylistID)
	items := objectArray(args, keyItems)
	if playlistID == "" || len(items) == 0 {
		return Payload{"new_tracks": 0}, nil
	}

	validTracks := make(map[string]datastore.Track)
	artists := make(map[string]datastore.Artist)
	albums := make(map[string]datastore.Album)
	adders := make(map[string]datastore.PlatformUser)
	for _, item := range items {
		trackObj, err := item.GetObject("track")
		if err != nil {
			continue
		}
		track := parser.TrackFromJSON(trackObj, "", 1)
		if track == nil {
			continue
		}
		validTracks[track.ID] = *track
		for _, artist := range parser.ArtistsFromTrack(trackObj) {
			artists[artist.ID] = artist
		}
		if album := parser.AlbumFromTrack(trackObj); album != nil {
			albums[album.ID] = *album
		}
		if adder := parser.UserFromPlaylistTrack(item); adder != nil {
			adders[adder.ID] = *adder
		}
	}

	for id := range adders {
		user := adders[id]
		if err := s.ds.CreatePlatformUser(&user); err != nil {
			return nil, err
		}
	}

	if err := s.createMissingArtists(artists); err != nil {
		return nil, err
	}
	if err := s.createMissingAlbums(albums); err != nil {
		return nil, err
	}

	missingTrackIDs, err := s.ds.MissingTrackIDs(mapKeys(validTracks))
	if err != nil {
		return nil, err
	}
	missingTracks := make([]datastore.Track, 0, len(missingTrackIDs))
	for _, id := range missingTrackIDs {
		missingTracks = append(missingTracks, validTracks[id])
	}
	newTracks, err := s.ds.CreateTracks(missingTracks)
	if err != nil {
		return nil, err
	}

	edges := make([]datastore.EdgePair, 0, len(validTracks))
	for trackID := range validTracks {
		edges = append(edges, datastore.EdgePair{PrimaryID: trackID, RelatedID: playlistID})
	}
	if _, err := s.resolver.Resolve(datastore.EdgeTrackPlaylist, edges); err != nil {
		return nil, err
	}

	return Payload{"new_tracks": newTracks}, nil
}

// flowPlaylistTracks collects tracks for the most followed playlists.
func (s *Service) flowPlaylistTracks(ctx context.Context, args Payload) (Payload, error) {
	skip := args.Int("skip", 0)
	limit := args.Int("limit", 2000)
	trackLimit := args.Int("track_limit", 300)

	playlistIDs, err := s.ds.PopularPlaylists(skip, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Info("collecting playlist tracks", "playlists", len(playlistIDs))

	for _, id := range playlistIDs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(dispatchJitter)
		workflow := NewChain(
			Call{Task: "fetch_playlist_tracks", Args: Payload{
				keyPlaylistID: id,
				"track_limit": trackLimit,
			}},
			Call{Task: "push_playlist_tracks"},
		)
		if err := s.exec.Dispatch(workflow, nil); err != nil {
			s.logger.Warn("playlist dispatch failed", "playlist_id", id, "error", err)
		}
	}
	return Payload{"dispatched": len(playlistIDs)}, nil
}

// pushSearchPlaylists persists the playlists found for one search term,
// their owners, their follower counts and the term membership edges.
func (s *Service) pushSearchPlaylists(ctx context.Context, args Payload) (Payload, error) {
	term := args.String(keyTerm)
	doc := args.Object(keySearchDoc)
	if term == "" || doc == nil {
		return Payload{"playlists": 0}, nil
	}

	items, err := doc.GetObjectArray("playlists", "items")
	if err != nil {
		s.logger.Debug("search result missing playlist items", "term", term)
		return Payload{"playlists": 0}, nil
	}

	if err := s.ds.CreateSearchTerm(&datastore.SearchTerm{ID: term}); err != nil {
		return nil, err
	}

	var edges []datastore.EdgePair
	stored := 0
	for _, item := range items {
		playlist := parser.PlaylistFromJSON(item)
		if playlist == nil {
			continue
		}
		if owner := parser.UserFromSearchPlaylist(item); owner != nil {
			if err := s.ds.CreatePlatformUser(owner); err != nil {
				return nil, err
			}
		}
		if err := s.ds.CreatePlaylist(playlist); err != nil {
			return nil, err
		}
		if count := parser.FollowerCountFromPlaylist(item); count != nil {
			if err := s.ds.CreatePlaylistFollowerCount(count); err != nil {
				return nil, err
			}
		}
		edges = append(edges, datastore.EdgePair{PrimaryID: term, RelatedID: playlist.ID})
		stored++
	}
	if _, err := s.resolver.Resolve(datastore.EdgeTermPlaylist, edges); err != nil {
		return nil, err
	}
	return Payload{"playlists": stored}, nil
}

// flowSearchPlaylists ingests playlists for a list of search terms.
func (s *Service) flowSearchPlaylists(ctx context.Context, args Payload) (Payload, error) {
	terms := args.Strings("terms")
	for _, term := range terms {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(dispatchJitter)
		workflow := NewChain(
			Call{Task: "search_playlists", Args: Payload{keyTerm: term}},
			Call{Task: "push_search_playlists"},
		)
		if err := s.exec.Dispatch(workflow, nil); err != nil {
			s.logger.Warn("search dispatch failed", "term", term, "error", err)
		}
	}
	return Payload{"dispatched": len(terms)}, nil
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
