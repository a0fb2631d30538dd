// Package conf defines the application settings tree and loads it from
// defaults, config file, .env credentials and environment overrides.
package conf

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SQLiteSettings holds SQLite output settings.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings holds MySQL output settings.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings selects the persistence backend.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// Identity is a single credential identity used against the streaming
// platform. Multiple identities are round-robined to spread request load.
type Identity struct {
	Name  string
	SPDC  string `mapstructure:"sp_dc"`
	SPKey string `mapstructure:"sp_key"`
}

// StreamingSettings configures the external data source adapter.
type StreamingSettings struct {
	APIBaseURL            string  `mapstructure:"apibaseurl"`
	ClientBaseURL         string  `mapstructure:"clientbaseurl"`
	PartnerBaseURL        string  `mapstructure:"partnerbaseurl"`
	ConnectTimeout        int     // seconds
	ReadTimeout           int     // seconds
	RequestsPerSecond     float64 `mapstructure:"requestspersecond"`
	RetrySleep            float64 // seconds to wait before the single 429 retry
	TokenRefreshThreshold int     `mapstructure:"tokenrefreshthreshold"` // seconds before expiry
	Identities            []Identity
}

// QueueSettings sizes one named job queue.
type QueueSettings struct {
	MaxJobs int
	Workers int
}

// QueuesSettings configures the cost-partitioned job queues.
type QueuesSettings struct {
	Default  QueueSettings
	Short    QueueSettings
	Distance QueueSettings
}

// ScoringSettings configures the embedding model and distance subsystem.
type ScoringSettings struct {
	ModelID      string  `mapstructure:"modelid"`
	ModelPath    string  `mapstructure:"modelpath"`
	DistanceType string  `mapstructure:"distancetype"`
	SpecType     string  `mapstructure:"spectype"`
	HopSize      int     `mapstructure:"hopsize"`
	WindowSize   int     `mapstructure:"windowsize"`
	MelBands     int     `mapstructure:"melbands"`
	MaxBatchSize int     `mapstructure:"maxbatchsize"`
	HitThreshold float64 `mapstructure:"hitthreshold"`
}

// ScheduleEntry binds one workflow to a cron expression with fixed kwargs.
// Entries for the same workflow with different skip/limit windows shard a
// large backfill across runs; windows must not overlap.
type ScheduleEntry struct {
	Name     string
	Workflow string
	Cron     string
	Timezone string
	Kwargs   map[string]any
}

// SchedulerSettings holds the static schedule table, loaded at process start.
type SchedulerSettings struct {
	Enabled  bool
	Timezone string
	Entries  []ScheduleEntry
}

// APISettings configures the HTTP surface.
type APISettings struct {
	Host string
	Port int
}

// MainSettings holds top-level identification settings.
type MainSettings struct {
	Name     string
	Timezone string
}

// Settings is the root of the configuration tree.
type Settings struct {
	Debug     bool
	Main      MainSettings
	Output    OutputSettings
	Streaming StreamingSettings
	Queues    QueuesSettings
	Scoring   ScoringSettings
	Scheduler SchedulerSettings
	API       APISettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration from all sources and validates it.
// Configuration errors are programmer errors and fail loud.
func Load() (*Settings, error) {
	// Credential identities live in .env so the config file can be committed.
	// A missing .env is fine; identities may come from real env vars instead.
	_ = godotenv.Load()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}

	loadIdentitiesFromEnv(settings)

	if err := Validate(settings); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/soundscout")
	viper.SetEnvPrefix("soundscout")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asConfigFileNotFound(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
		// No config file is acceptable; defaults plus env carry the load.
	}
	return nil
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// loadIdentitiesFromEnv picks up SOUNDSCOUT_IDENTITY_<N>_NAME/SP_DC/SP_KEY
// triples so credentials never need to appear in config.yaml.
func loadIdentitiesFromEnv(settings *Settings) {
	for i := 1; ; i++ {
		name := os.Getenv(fmt.Sprintf("SOUNDSCOUT_IDENTITY_%d_NAME", i))
		if name == "" {
			return
		}
		settings.Streaming.Identities = append(settings.Streaming.Identities, Identity{
			Name:  name,
			SPDC:  os.Getenv(fmt.Sprintf("SOUNDSCOUT_IDENTITY_%d_SP_DC", i)),
			SPKey: os.Getenv(fmt.Sprintf("SOUNDSCOUT_IDENTITY_%d_SP_KEY", i)),
		})
	}
}

// Setting returns the loaded settings instance, loading on first use.
func Setting() *Settings {
	settingsMutex.RLock()
	s := settingsInstance
	settingsMutex.RUnlock()
	if s != nil {
		return s
	}
	loaded, err := Load()
	if err != nil {
		panic(fmt.Sprintf("configuration error: %v", err))
	}
	return loaded
}

// Timezone resolves the scheduler timezone, falling back to the main one.
func (s *SchedulerSettings) Location(fallback string) (*time.Location, error) {
	tz := s.Timezone
	if tz == "" {
		tz = fallback
	}
	if tz == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}
