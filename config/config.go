/*
Package config loads engine configuration from file and environment.

PURPOSE:
  One Load() call resolves the full runtime configuration: HTTP address,
  database path, organizational calendar, and scheduler cadence.

PRECEDENCE:
  defaults < config file (leave-engine.yaml) < environment variables.
  Environment variables use the LEAVE_ prefix with underscores, e.g.
  LEAVE_HTTP_ADDR, LEAVE_DB_PATH, LEAVE_CALENDAR_TIMEZONE.

WEEKEND DAYS:
  Configured as weekday names. The default deployment observes a
  Friday+Saturday weekend.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	DB        DBConfig        `mapstructure:"db"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type CalendarConfig struct {
	Timezone    string   `mapstructure:"timezone"`
	WeekendDays []string `mapstructure:"weekend_days"`
}

type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	AccrualSpec  string `mapstructure:"accrual_spec"`
	LapseSpec    string `mapstructure:"lapse_spec"`
	OverstaySpec string `mapstructure:"overstay_spec"`
}

// Load resolves configuration from defaults, an optional
// leave-engine.yaml in the working directory, and the environment.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("db.path", "leave-engine.db")
	v.SetDefault("calendar.timezone", "Asia/Dhaka")
	v.SetDefault("calendar.weekend_days", []string{"Friday", "Saturday"})
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.accrual_spec", "")
	v.SetDefault("scheduler.lapse_spec", "")
	v.SetDefault("scheduler.overstay_spec", "")

	v.SetConfigName("leave-engine")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/leave-engine")

	v.SetEnvPrefix("LEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if _, err := cfg.Weekend(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Weekend resolves the configured weekday names.
func (c Config) Weekend() ([]time.Weekday, error) {
	names := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
	out := make([]time.Weekday, 0, len(c.Calendar.WeekendDays))
	for _, name := range c.Calendar.WeekendDays {
		wd, ok := names[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown weekend day %q", name)
		}
		out = append(out, wd)
	}
	return out, nil
}
