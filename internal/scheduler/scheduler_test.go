package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/flow"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
)

// testService builds a flow service with no live dependencies. Registration
// only captures them in closures, which is all schedule validation needs.
func testService(t *testing.T) *flow.Service {
	t.Helper()
	queues := jobqueue.NewManager(&conf.QueuesSettings{
		Default:  conf.QueueSettings{MaxJobs: 10, Workers: 1},
		Short:    conf.QueueSettings{MaxJobs: 10, Workers: 1},
		Distance: conf.QueueSettings{MaxJobs: 10, Workers: 1},
	})
	service, err := flow.NewService(&conf.Settings{}, nil, nil, nil, nil, nil, queues)
	require.NoError(t, err)
	return service
}

func TestNewFallsBackToDefaultEntries(t *testing.T) {
	settings := &conf.Settings{}
	settings.Scheduler.Enabled = true

	s, err := New(settings, testService(t))
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), len(conf.DefaultScheduleEntries()))
}

func TestNewAcceptsConfiguredEntries(t *testing.T) {
	settings := &conf.Settings{}
	settings.Scheduler.Entries = []conf.ScheduleEntry{
		{
			Name:     "nightly-playlists",
			Workflow: "flow_playlist_tracks",
			Cron:     "0 2 * * *",
			Timezone: "Europe/Berlin",
			Kwargs:   map[string]any{"limit": 500},
		},
	}

	s, err := New(settings, testService(t))
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)

	s.Start()
	s.Stop()
}

func TestNewRejectsUnknownWorkflow(t *testing.T) {
	settings := &conf.Settings{}
	settings.Scheduler.Entries = []conf.ScheduleEntry{
		{Name: "bad", Workflow: "flow_does_not_exist", Cron: "* * * * *"},
	}

	_, err := New(settings, testService(t))
	assert.Error(t, err)
}

func TestNewRejectsBadCronExpression(t *testing.T) {
	settings := &conf.Settings{}
	settings.Scheduler.Entries = []conf.ScheduleEntry{
		{Name: "bad", Workflow: "flow_playlist_tracks", Cron: "not a cron"},
	}

	_, err := New(settings, testService(t))
	assert.Error(t, err)
}

func TestNewRejectsBadTimezones(t *testing.T) {
	settings := &conf.Settings{}
	settings.Scheduler.Timezone = "Mars/Olympus"
	_, err := New(settings, testService(t))
	assert.Error(t, err)

	settings = &conf.Settings{}
	settings.Scheduler.Entries = []conf.ScheduleEntry{
		{Name: "bad-tz", Workflow: "flow_playlist_tracks", Cron: "* * * * *", Timezone: "Mars/Olympus"},
	}
	_, err = New(settings, testService(t))
	assert.Error(t, err)
}
