// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "SoundScout")
	viper.SetDefault("main.timezone", "America/Los_Angeles")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "soundscout.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "soundscout")
	viper.SetDefault("output.mysql.database", "soundscout")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("streaming.apibaseurl", "https://api.spotify.com/v1")
	viper.SetDefault("streaming.clientbaseurl", "https://spclient.wg.spotify.com")
	viper.SetDefault("streaming.partnerbaseurl", "https://api-partner.spotify.com")
	viper.SetDefault("streaming.connecttimeout", 3)
	viper.SetDefault("streaming.readtimeout", 10)
	viper.SetDefault("streaming.requestspersecond", 10.0)
	viper.SetDefault("streaming.retrysleep", 0.4)
	viper.SetDefault("streaming.tokenrefreshthreshold", 120)

	viper.SetDefault("queues.default.maxjobs", 10000)
	viper.SetDefault("queues.default.workers", 8)
	viper.SetDefault("queues.short.maxjobs", 50000)
	viper.SetDefault("queues.short.workers", 16)
	viper.SetDefault("queues.distance.maxjobs", 2000)
	viper.SetDefault("queues.distance.workers", 2)

	viper.SetDefault("scoring.modelid", "CNNSpectrogramV2_2019-11-25_100")
	viper.SetDefault("scoring.modelpath", "models/spectrogram_v2.bin")
	viper.SetDefault("scoring.distancetype", "euclidean")
	viper.SetDefault("scoring.spectype", "mel")
	viper.SetDefault("scoring.hopsize", 512)
	viper.SetDefault("scoring.windowsize", 2048)
	viper.SetDefault("scoring.melbands", 128)
	viper.SetDefault("scoring.maxbatchsize", 64)
	viper.SetDefault("scoring.hitthreshold", 0.70)

	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.timezone", "America/Los_Angeles")

	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8080)
}

// DefaultScheduleEntries returns the built-in schedule table used when the
// config file does not define one. Shard pairs for the same workflow use
// disjoint skip/limit windows.
func DefaultScheduleEntries() []ScheduleEntry {
	return []ScheduleEntry{
		{
			Name:     "update-artists-twice-daily",
			Workflow: "flow_update_artists",
			Cron:     "4 0,5 * * *",
			Kwargs:   map[string]any{"skip": 0, "limit": 10000},
		},
		{
			Name:     "update-artists-offset-shard-twice-daily",
			Workflow: "flow_update_artists",
			Cron:     "0 2,6 * * *",
			Kwargs:   map[string]any{"skip": 10000, "limit": 5000},
		},
		{
			Name:     "update-tracks-twice-daily",
			Workflow: "flow_update_tracks",
			Cron:     "40 0,5 * * *",
			Kwargs:   map[string]any{"skip": 0, "limit": 50000},
		},
		{
			Name:     "update-tracks-offset-shard-twice-daily",
			Workflow: "flow_update_tracks",
			Cron:     "40 2,6 * * *",
			Kwargs:   map[string]any{"skip": 50000, "limit": 50000},
		},
		{
			Name:     "scrape-playlist-tracks-weekly",
			Workflow: "flow_playlist_tracks",
			Cron:     "0 1 * * 2",
			Kwargs:   map[string]any{"track_limit": 300, "skip": 0, "limit": 8000},
		},
		{
			Name:     "scrape-album-playcounts-three-times-daily",
			Workflow: "flow_album_playcounts",
			Cron:     "10 0,7,23 * * *",
			Kwargs:   map[string]any{"verified_artists": true, "skip": 0, "limit": 100000},
		},
		{
			Name:     "scrape-spectrograms-every-third-hour",
			Workflow: "flow_spectrograms",
			Cron:     "40 */3 * * *",
			Kwargs:   map[string]any{"lag_days": 7, "skip": 0, "limit": 2000},
		},
		{
			Name:     "track-predictions-every-fourth-hour",
			Workflow: "flow_track_predictions",
			Cron:     "30 */4 * * *",
			Kwargs:   map[string]any{"lag_days": 7, "skip": 0, "limit": 10000},
		},
		{
			Name:     "track-distances-every-twenty-minutes",
			Workflow: "flow_track_distances",
			Cron:     "*/20 1,8,9,10,11,13,22,23 * * *",
			Kwargs: map[string]any{
				"lag_days": 7, "days_since_release": 180,
				"candidate_hit_limit": 2000, "skip": 0, "limit": 20000,
			},
		},
	}
}
