package conf

import (
	"fmt"
	"time"
)

// Validate checks settings consistency at startup. Anything wrong here is a
// configuration error and must fail loud, not be swallowed at first use.
func Validate(settings *Settings) error {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no database output enabled, enable output.sqlite or output.mysql")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path is required when SQLite is enabled")
	}
	if settings.Output.MySQL.Enabled {
		m := &settings.Output.MySQL
		if m.Username == "" || m.Database == "" || m.Host == "" {
			return fmt.Errorf("output.mysql requires username, database and host")
		}
	}

	if settings.Streaming.ConnectTimeout <= 0 || settings.Streaming.ReadTimeout <= 0 {
		return fmt.Errorf("streaming timeouts must be positive")
	}
	if settings.Streaming.RequestsPerSecond <= 0 {
		return fmt.Errorf("streaming.requestspersecond must be positive")
	}

	switch settings.Scoring.DistanceType {
	case "euclidean":
	default:
		return fmt.Errorf("unsupported distance type %q, only euclidean is implemented",
			settings.Scoring.DistanceType)
	}
	if settings.Scoring.MaxBatchSize <= 0 {
		return fmt.Errorf("scoring.maxbatchsize must be positive")
	}

	if err := validateSchedule(settings); err != nil {
		return err
	}

	if settings.API.Port <= 0 || settings.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", settings.API.Port)
	}
	return nil
}

func validateSchedule(settings *Settings) error {
	sched := &settings.Scheduler
	if !sched.Enabled {
		return nil
	}
	if _, err := sched.Location(settings.Main.Timezone); err != nil {
		return fmt.Errorf("scheduler timezone: %w", err)
	}
	seen := make(map[string]bool, len(sched.Entries))
	for i := range sched.Entries {
		e := &sched.Entries[i]
		if e.Name == "" || e.Workflow == "" || e.Cron == "" {
			return fmt.Errorf("schedule entry %d missing name, workflow or cron", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate schedule entry name %q", e.Name)
		}
		seen[e.Name] = true
		if e.Timezone != "" {
			if _, err := time.LoadLocation(e.Timezone); err != nil {
				return fmt.Errorf("schedule entry %q timezone: %w", e.Name, err)
			}
		}
	}
	return nil
}
