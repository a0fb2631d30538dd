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
	keyUserID   = "user_id"
	keyTopTrack = "top_track"
	keySource   = "source"

	// sourceTopTracks marks library links ingested from a user's listening
	// profile, as opposed to links observed on playlists.
	sourceTopTracks = "top-tracks"

	// userHitLimit caps candidate hits when a single user's library changes.
	userHitLimit = 5000
)

func (s *Service) registerUserTasks() error {
	tasks := []*Task{
		{
			Name: "push_user_tracks", Queue: jobqueue.QueueDefault, TimeLimit: 60 * time.Second,
			Run:  s.pushUserTracks,
		},
		{
			Name: "flow_user_tracks", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Minute,
			Run:  s.flowUserTracks,
		},
	}
	for _, task := range tasks {
		if err := s.registry.Register(task); err != nil {
			return err
		}
	}
	return nil
}

// pushUserTracks links a batch of track objects to a user's library: the user
// row, the tracks with their artists and albums, and the track_users rows
// carrying the top-track flag and the ingestion source. Tracks already linked
// to the user are skipped, so re-submitting the same library is a no-op.
// Newly linked tracks with a preview URL get a spectrogram chain dispatched.
func (s *Service) pushUserTracks(ctx context.Context, args Payload) (Payload, error) {
	userID := args.String(keyUserID)
	if userID == "" {
		return nil, errors.Newf("push_user_tracks: user id is required").
			Component("flow").
			Category(errors.CategoryValidation).
			Build()
	}
	topTrack := args.Bool(keyTopTrack, false)
	source := args.String(keySource)

	if err := s.ds.CreatePlatformUser(&datastore.PlatformUser{ID: userID}); err != nil {
		return nil, err
	}

	items := objectArray(args, keyItems)
	if len(items) == 0 {
		return Payload{"linked": 0}, nil
	}

	linkedIDs, err := s.ds.UserTrackIDs(userID)
	if err != nil {
		return nil, err
	}
	linked := make(map[string]struct{}, len(linkedIDs))
	for _, id := range linkedIDs {
		linked[id] = struct{}{}
	}

	newTracks := make(map[string]datastore.Track)
	artists := make(map[string]datastore.Artist)
	albums := make(map[string]datastore.Album)
	for _, item := range items {
		trackObj := item
		// Saved-track exports wrap the track object in a container item.
		if inner, err := item.GetObject("track"); err == nil {
			trackObj = inner
		}
		track := parser.TrackFromJSON(trackObj, "", 1)
		if track == nil {
			continue
		}
		if _, ok := linked[track.ID]; ok {
			continue
		}
		newTracks[track.ID] = *track
		for _, artist := range parser.ArtistsFromTrack(trackObj) {
			artists[artist.ID] = artist
		}
		if album := parser.AlbumFromTrack(trackObj); album != nil {
			albums[album.ID] = *album
		}
	}
	if len(newTracks) == 0 {
		return Payload{"linked": 0}, nil
	}

	if err := s.createMissingArtists(artists); err != nil {
		return nil, err
	}
	if err := s.createMissingAlbums(albums); err != nil {
		return nil, err
	}
	missingTrackIDs, err := s.ds.MissingTrackIDs(mapKeys(newTracks))
	if err != nil {
		return nil, err
	}
	missingTracks := make([]datastore.Track, 0, len(missingTrackIDs))
	for _, id := range missingTrackIDs {
		missingTracks = append(missingTracks, newTracks[id])
	}
	if _, err := s.ds.CreateTracks(missingTracks); err != nil {
		return nil, err
	}

	rows := make([]datastore.TrackUser, 0, len(newTracks))
	for id := range newTracks {
		rows = append(rows, datastore.TrackUser{
			TrackID:  id,
			UserID:   userID,
			TopTrack: topTrack,
			Source:   source,
		})
	}
	linkedCount, err := s.ds.CreateTrackUsers(rows)
	if err != nil {
		return nil, err
	}

	for _, track := range newTracks {
		if track.PreviewURL == "" {
			continue
		}
		workflow := NewChain(
			Call{Task: "fetch_preview", Args: Payload{keyPreviewURL: track.PreviewURL}},
			Call{Task: "push_spectrogram", Args: Payload{keyTrackID: track.ID}},
		)
		if err := s.exec.Dispatch(workflow, nil); err != nil {
			s.logger.Warn("preview dispatch failed", "track_id", track.ID, "error", err)
		}
	}

	return Payload{"linked": linkedCount}, nil
}

// flowUserTracks ingests a user's library and chains straight into the
// distance run for that user, so new library tracks get candidate pairs
// scored without waiting for the next scheduled run.
func (s *Service) flowUserTracks(ctx context.Context, args Payload) (Payload, error) {
	userID := args.String(keyUserID)
	if userID == "" {
		return nil, errors.Newf("flow_user_tracks: user id is required").
			Component("flow").
			Category(errors.CategoryValidation).
			Build()
	}
	workflow := NewChain(
		Call{Task: "push_user_tracks", Args: args.Clone()},
		Call{Task: "flow_track_distances", Args: Payload{
			keyUserIDs:            []string{userID},
			"candidate_hit_limit": args.Int("candidate_hit_limit", userHitLimit),
		}},
	)
	if err := s.exec.Dispatch(workflow, nil); err != nil {
		return nil, err
	}
	return Payload{"dispatched": 1}, nil
}

// IngestUserTracks queues a user's top tracks for library ingestion. The HTTP
// API hands the raw track items straight through; they are parsed on the
// worker, not on the request path.
func (s *Service) IngestUserTracks(userID string, items []*jason.Object) error {
	return s.DispatchWorkflow("flow_user_tracks", Payload{
		keyUserID:   userID,
		keyItems:    items,
		keyTopTrack: true,
		keySource:   sourceTopTracks,
	})
}
