package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscout/soundscout-go/internal/association"
	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/datastore"
)

// fakeStore overrides just the datastore surface the artist tasks touch.
// Everything else panics via the embedded nil interface, which is the point:
// a test hitting an unexpected store call should fail loudly.
type fakeStore struct {
	datastore.Interface

	artists       map[string]*datastore.Artist
	created       []datastore.Artist
	missingLookups [][]string
	hasGenres     bool
	hasLinks      bool
	edges         []datastore.EdgePair

	users         []datastore.PlatformUser
	userTracks    map[string][]string
	trackUsers    []datastore.TrackUser
	createdTracks []datastore.Track
}

func (f *fakeStore) GetArtist(id string) (*datastore.Artist, error) {
	return f.artists[id], nil
}

func (f *fakeStore) CreateArtist(artist *datastore.Artist) error {
	f.created = append(f.created, *artist)
	return nil
}

func (f *fakeStore) UpdateArtistStatus(existing, incoming *datastore.Artist) error {
	return nil
}

func (f *fakeStore) MissingArtistIDs(ids []string) ([]string, error) {
	f.missingLookups = append(f.missingLookups, ids)
	return nil, nil
}

func (f *fakeStore) ArtistHasGenres(id string) (bool, error) { return f.hasGenres, nil }
func (f *fakeStore) ArtistHasLinks(id string) (bool, error)  { return f.hasLinks, nil }

func (f *fakeStore) ExistingEdges(kind datastore.EdgeKind, primaryIDs []string) ([]datastore.EdgePair, error) {
	return nil, nil
}

func (f *fakeStore) InsertEdges(kind datastore.EdgeKind, pairs []datastore.EdgePair) (int, error) {
	f.edges = append(f.edges, pairs...)
	return len(pairs), nil
}

func (f *fakeStore) EnsureGenres(ids []string) (int, error) { return 0, nil }

// newTestService builds a service over the fake store. The queues are never
// started, so any dispatch attempt fails with ErrQueueStopped, which makes
// "did this path try to dispatch" directly observable.
func newTestService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	service, err := NewService(&conf.Settings{}, store, nil, nil, nil,
		association.NewResolver(store), testManager())
	require.NoError(t, err)
	return service
}

func TestFlowArtistShortCircuitsOnIngestedArtist(t *testing.T) {
	verified, active := true, true
	store := &fakeStore{artists: map[string]*datastore.Artist{
		"ar1": {ID: "ar1", Name: "Known", Verified: &verified, Active: &active},
	}}
	service := newTestService(t, store)

	// A fully ingested artist returns without touching the stopped queues.
	out, err := service.flowArtist(context.Background(), Payload{"artist_id": "ar1"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFlowArtistDispatchesWhenDataIsMissing(t *testing.T) {
	store := &fakeStore{artists: map[string]*datastore.Artist{}}
	service := newTestService(t, store)

	// Unknown artist reaches the dispatch path, which fails on stopped queues.
	_, err := service.flowArtist(context.Background(), Payload{"artist_id": "ar-new"})
	assert.Error(t, err)
}

func TestFlowArtistRequiresID(t *testing.T) {
	service := newTestService(t, &fakeStore{})

	_, err := service.flowArtist(context.Background(), Payload{})
	assert.Error(t, err)
}

func TestPushArtistCreatesAndLinksGenres(t *testing.T) {
	store := &fakeStore{artists: map[string]*datastore.Artist{}}
	service := newTestService(t, store)

	out, err := service.pushArtist(context.Background(), Payload{
		"artist": &datastore.Artist{ID: "ar1", Name: "New Act"},
		"genres": []string{"rock", "pop"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ar1", out.String("artist_id"))

	require.Len(t, store.created, 1)
	assert.Equal(t, "ar1", store.created[0].ID)
	assert.ElementsMatch(t, []datastore.EdgePair{
		{PrimaryID: "ar1", RelatedID: "rock"},
		{PrimaryID: "ar1", RelatedID: "pop"},
	}, store.edges)
}

func TestPushArtistSkipsGenresAlreadyLinked(t *testing.T) {
	store := &fakeStore{artists: map[string]*datastore.Artist{}, hasGenres: true}
	service := newTestService(t, store)

	_, err := service.pushArtist(context.Background(), Payload{
		"artist": &datastore.Artist{ID: "ar1"},
		"genres": []string{"rock"},
	})
	require.NoError(t, err)
	assert.Empty(t, store.edges)
}

func TestPushArtistChecksRelatedOnlyWhenPropagating(t *testing.T) {
	related := []datastore.Artist{{ID: "ar2"}, {ID: "ar3"}}

	// Propagation enabled: the related set is checked for unknown artists.
	store := &fakeStore{artists: map[string]*datastore.Artist{}}
	service := newTestService(t, store)
	_, err := service.pushArtist(context.Background(), Payload{
		"artist":  &datastore.Artist{ID: "ar1"},
		"related": related,
	})
	require.NoError(t, err)
	require.Len(t, store.missingLookups, 1)
	assert.ElementsMatch(t, []string{"ar2", "ar3"}, store.missingLookups[0])

	// A child graph runs with propagation disabled and skips that check.
	store = &fakeStore{artists: map[string]*datastore.Artist{}}
	service = newTestService(t, store)
	_, err = service.pushArtist(context.Background(), Payload{
		"artist":               &datastore.Artist{ID: "ar1"},
		"related":              related,
		"push_related_artists": false,
	})
	require.NoError(t, err)
	assert.Empty(t, store.missingLookups)
}

func TestPushArtistRequiresParsedArtist(t *testing.T) {
	service := newTestService(t, &fakeStore{})

	_, err := service.pushArtist(context.Background(), Payload{})
	assert.Error(t, err)
}
