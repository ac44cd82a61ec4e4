package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"friday/internal/config"
	"friday/internal/services/dispatch"
	"friday/internal/services/janitor"
	"friday/internal/services/notify"
	"friday/internal/storage"
	logx "friday/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	maxSleep, err := config.ParseDurationField("dispatch.max_sleep", cfg.Dispatch.MaxSleep)
	if err != nil {
		return dispatch.Config{}, err
	}
	if cfg.Dispatch.HistorySize < 0 {
		return dispatch.Config{}, fmt.Errorf("dispatch.history_size must be >= 0")
	}
	return dispatch.Config{
		MaxSleep:    maxSleep,
		HistorySize: cfg.Dispatch.HistorySize,
	}, nil
}

func mapNotifyConfig(cfg *config.Config) (notify.Config, error) {
	if cfg.Notify.RatePerSec < 0 {
		return notify.Config{}, fmt.Errorf("notify.rate_per_sec must be >= 0")
	}
	if cfg.Notify.HistorySize < 0 {
		return notify.Config{}, fmt.Errorf("notify.history_size must be >= 0")
	}
	return notify.Config{
		RatePerSec:  cfg.Notify.RatePerSec,
		HistorySize: cfg.Notify.HistorySize,
	}, nil
}

func mapJanitorConfig(cfg *config.Config) janitor.Config {
	return janitor.Config{
		Enabled:     cfg.Janitor.Enabled,
		CompactSpec: cfg.Janitor.CompactSpec,
		DigestSpec:  cfg.Janitor.DigestSpec,
		Timezone:    cfg.Dispatch.Timezone,
	}
}

// agendaLocation resolves the timezone commitments are scheduled in.
func agendaLocation(cfg *config.Config) (*time.Location, error) {
	tz := strings.TrimSpace(cfg.Dispatch.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("dispatch.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}

// validateConfig rejects bad configs before Commit during hot reload, so a
// typo in the file keeps the previous config live instead of half-applying.
func validateConfig(cfg *config.Config) error {
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDispatchConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifyConfig(cfg); err != nil {
		return err
	}
	if _, err := agendaLocation(cfg); err != nil {
		return err
	}
	if cfg.Janitor.Enabled {
		for key, spec := range map[string]string{
			"janitor.compact_spec": cfg.Janitor.CompactSpec,
			"janitor.digest_spec":  cfg.Janitor.DigestSpec,
		} {
			if strings.TrimSpace(spec) == "" {
				continue
			}
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("%s: invalid cron spec %q: %w", key, spec, err)
			}
		}
	}
	if cfg.Telegram != nil {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token must be set when the telegram section is present")
		}
		if cfg.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id must be set when the telegram section is present")
		}
	}
	return nil
}
