package flow

import (
	"context"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
	"github.com/soundscout/soundscout-go/internal/spotify/parser"
)

const (
	keyTrackIDs  = "track_ids"
	keyTracksDoc = "tracks_doc"
)

func (s *Service) registerTrackTasks() error {
	tasks := []*Task{
		{
			Name: "fetch_tracks_data", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Second,
			Run: func(ctx context.Context, args Payload) (Payload, error) {
				doc, err := s.client.Tracks(ctx, args.Strings(keyTrackIDs))
				if err != nil {
					return nil, err
				}
				return Payload{keyTracksDoc: doc}, nil
			},
		},
		{
			Name: "update_tracks", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Second,
			Run:  s.updateTracks,
		},
		{
			Name: "flow_update_tracks", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Minute,
			Run:  s.flowUpdateTracks,
		},
	}
	for _, task := range tasks {
		if err := s.registry.Register(task); err != nil {
			return err
		}
	}
	return nil
}

// updateTracks upserts a batch of API track objects along with any artists
// and albums they reference that are not stored yet, then links the edges.
func (s *Service) updateTracks(ctx context.Context, args Payload) (Payload, error) {
	doc := args.Object(keyTracksDoc)
	if doc == nil {
		return Payload{"updated": 0}, nil
	}
	trackObjs, err := doc.GetObjectArray("tracks")
	if err != nil {
		return nil, errors.Newf("tracks response missing track list").
			Component("flow").
			Category(errors.CategoryJSONParsing).
			Build()
	}

	var tracks []datastore.Track
	artists := make(map[string]datastore.Artist)
	albums := make(map[string]datastore.Album)
	trackArtistEdges := make([]datastore.EdgePair, 0, len(trackObjs))
	albumArtistEdges := make([]datastore.EdgePair, 0, len(trackObjs))

	for _, obj := range trackObjs {
		track := parser.TrackFromJSON(obj, "", 1)
		if track == nil {
			continue
		}
		tracks = append(tracks, *track)

		for _, artist := range parser.ArtistsFromTrack(obj) {
			artists[artist.ID] = artist
		}
		if album := parser.AlbumFromTrack(obj); album != nil {
			albums[album.ID] = *album
			if albumArtists, err := obj.GetObjectArray("album", "artists"); err == nil {
				for _, a := range parser.ArtistsFromList(albumArtists) {
					albumArtistEdges = append(albumArtistEdges,
						datastore.EdgePair{PrimaryID: album.ID, RelatedID: a.ID})
				}
			}
		}
		if trackArtists, err := obj.GetObjectArray("artists"); err == nil {
			for _, a := range parser.ArtistsFromList(trackArtists) {
				trackArtistEdges = append(trackArtistEdges,
					datastore.EdgePair{PrimaryID: track.ID, RelatedID: a.ID})
			}
		}
	}

	if err := s.createMissingArtists(artists); err != nil {
		return nil, err
	}
	if err := s.createMissingAlbums(albums); err != nil {
		return nil, err
	}
	updated, err := s.ds.UpdateTracks(tracks)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolver.Resolve(datastore.EdgeAlbumArtist, albumArtistEdges); err != nil {
		return nil, err
	}
	if _, err := s.resolver.Resolve(datastore.EdgeTrackArtist, trackArtistEdges); err != nil {
		return nil, err
	}

	return Payload{"updated": updated}, nil
}

// flowUpdateTracks refreshes metadata for tracks with no preview URL, in
// batches of fifty per API call.
func (s *Service) flowUpdateTracks(ctx context.Context, args Payload) (Payload, error) {
	skip := args.Int("skip", 0)
	limit := args.Int("limit", 100000)

	trackIDs, err := s.ds.TracksMissingPreviewURL(skip, limit)
	if err != nil {
		return nil, err
	}
	chunks := Chunk(trackIDs, fetchChunkSize)
	s.logger.Info("updating track metadata", "tracks", len(trackIDs), "batches", len(chunks))

	for _, ids := range chunks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(dispatchJitter)
		workflow := NewChain(
			Call{Task: "fetch_tracks_data", Args: Payload{keyTrackIDs: ids}},
			Call{Task: "update_tracks"},
		)
		if err := s.exec.Dispatch(workflow, nil); err != nil {
			s.logger.Warn("track batch dispatch failed", "batch_size", len(ids), "error", err)
		}
	}
	return Payload{"dispatched": len(chunks)}, nil
}

// createMissingArtists inserts only the artists not present yet.
func (s *Service) createMissingArtists(artists map[string]datastore.Artist) error {
	if len(artists) == 0 {
		return nil
	}
	ids := make([]string, 0, len(artists))
	for id := range artists {
		ids = append(ids, id)
	}
	missing, err := s.ds.MissingArtistIDs(ids)
	if err != nil {
		return err
	}
	rows := make([]datastore.Artist, 0, len(missing))
	for _, id := range missing {
		rows = append(rows, artists[id])
	}
	_, err = s.ds.CreateArtists(rows)
	return err
}

// createMissingAlbums inserts only the albums not present yet.
func (s *Service) createMissingAlbums(albums map[string]datastore.Album) error {
	if len(albums) == 0 {
		return nil
	}
	ids := make([]string, 0, len(albums))
	for id := range albums {
		ids = append(ids, id)
	}
	missing, err := s.ds.MissingAlbumIDs(ids)
	if err != nil {
		return err
	}
	rows := make([]datastore.Album, 0, len(missing))
	for _, id := range missing {
		rows = append(rows, albums[id])
	}
	_, err = s.ds.CreateAlbums(rows)
	return err
}

// objectArray is a tolerant array accessor used by push tasks that carry
// JSON fragments between steps.
func objectArray(p Payload, key string) []*jason.Object {
	objs, _ := p[key].([]*jason.Object)
	return objs
}
