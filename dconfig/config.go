// Package dconfig loads dispatcher configuration from YAML + environment
// overrides, generalized from valley-pkg's config package (same
// viper.AutomaticEnv + per-APP_ENV YAML file layout).
package dconfig

import (
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

const (
	cmdDir    = "cmd"
	configDir = "configs"
)

// Dispatch holds every tunable named in spec §6's environment-style config
// keys. Durations are stored in seconds in YAML/env (the *_INTERVAL_MS
// keys in milliseconds) but exposed as time.Duration to callers.
type Dispatch struct {
	LimitDefault    int `mapstructure:"LIMIT_DEFAULT"`
	PreDialBaseSec  int `mapstructure:"PRE_DIAL_BASE"`
	PreDialJitterSec int `mapstructure:"PRE_DIAL_JITTER"`
	PreDialMaxSec   int `mapstructure:"PRE_DIAL_MAX"`

	ActiveLeaseBaseSec   int `mapstructure:"ACTIVE_LEASE_BASE"`
	ActiveLeaseJitterSec int `mapstructure:"ACTIVE_LEASE_JITTER"`

	ReservationTTLSec int `mapstructure:"RESERVATION_TTL"`
	GateTTLSec        int `mapstructure:"GATE_TTL"`

	FairnessRatioHigh   int `mapstructure:"FAIRNESS_RATIO_HIGH"`
	FairnessRatioNormal int `mapstructure:"FAIRNESS_RATIO_NORMAL"`

	ColdstartBlockSec int `mapstructure:"COLDSTART_BLOCK"`

	JanitorIntervalMs    int `mapstructure:"JANITOR_INTERVAL_MS"`
	CompactorIntervalMs  int `mapstructure:"COMPACTOR_INTERVAL_MS"`
	ReconcilerIntervalMs int `mapstructure:"RECONCILER_INTERVAL_MS"`
	InvariantIntervalMs  int `mapstructure:"INVARIANT_INTERVAL_MS"`

	DialIdempotencyTTLSec int `mapstructure:"DIAL_IDEMPOTENCY_TTL"`

	Redis RedisConfig `mapstructure:"REDIS"`
	MySQL MySQLConfig `mapstructure:"MYSQL"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"DSN"`
}

// Default returns the spec-recommended defaults (§5), used when a YAML
// file omits a key.
func Default() Dispatch {
	return Dispatch{
		LimitDefault:         5,
		PreDialBaseSec:       15,
		PreDialJitterSec:     5,
		PreDialMaxSec:        45,
		ActiveLeaseBaseSec:   180,
		ActiveLeaseJitterSec: 60,
		ReservationTTLSec:    70,
		GateTTLSec:           20,
		FairnessRatioHigh:    3,
		FairnessRatioNormal:  1,
		ColdstartBlockSec:    90,
		JanitorIntervalMs:    30_000,
		CompactorIntervalMs:  120_000,
		ReconcilerIntervalMs: 900_000,
		InvariantIntervalMs:  30_000,
		DialIdempotencyTTLSec: 300,
		Redis: RedisConfig{Addr: "localhost:6379", DB: 0},
	}
}

func (d Dispatch) PreDialTTL() time.Duration {
	return time.Duration(d.PreDialBaseSec) * time.Second
}

func (d Dispatch) PreDialMax() time.Duration {
	return time.Duration(d.PreDialMaxSec) * time.Second
}

func (d Dispatch) ActiveLeaseTTL() time.Duration {
	return time.Duration(d.ActiveLeaseBaseSec) * time.Second
}

func (d Dispatch) ReservationTTL() time.Duration {
	return time.Duration(d.ReservationTTLSec) * time.Second
}

func (d Dispatch) GateTTL() time.Duration {
	return time.Duration(d.GateTTLSec) * time.Second
}

func (d Dispatch) ColdstartBlock() time.Duration {
	return time.Duration(d.ColdstartBlockSec) * time.Second
}

func (d Dispatch) DialIdempotencyTTL() time.Duration {
	return time.Duration(d.DialIdempotencyTTLSec) * time.Second
}

func (d Dispatch) JanitorInterval() time.Duration {
	return time.Duration(d.JanitorIntervalMs) * time.Millisecond
}

func (d Dispatch) CompactorInterval() time.Duration {
	return time.Duration(d.CompactorIntervalMs) * time.Millisecond
}

func (d Dispatch) ReconcilerInterval() time.Duration {
	return time.Duration(d.ReconcilerIntervalMs) * time.Millisecond
}

func (d Dispatch) InvariantInterval() time.Duration {
	return time.Duration(d.InvariantIntervalMs) * time.Millisecond
}

// Read loads environment variables and the YAML file for the active
// APP_ENV into cfg, starting from Default() so missing keys keep their
// spec-recommended values.
func Read(cfg *Dispatch) error {
	*cfg = Default()
	return ReadWithConfigDirPath(cfg, getConfigDirPath(2))
}

// ReadWithConfigDirPath loads config from a caller-specified directory,
// useful for tests that ship a fixture configs/ tree.
func ReadWithConfigDirPath(cfg *Dispatch, cfgDirPath string) error {
	return read(cfg, GetAppEnv(), cfgDirPath)
}

func read(cfg *Dispatch, cfgName string, cfgDirPath string) error {
	v := viper.New()
	v.AutomaticEnv()

	v.SetConfigName(cfgName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cfgDirPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// No YAML file for this environment; env-var overrides and
			// Default() are all we have, which is fine for local/dev runs.
			return nil
		}
		return errors.Errorf("read cfg error: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return errors.Errorf("parse cfg error: %w", err)
	}
	return nil
}

// getConfigDirPath locates the configs/ directory relative to the cmd/
// package doing the loading, same convention as the teacher package.
func getConfigDirPath(skip int) string {
	_, file, _, _ := runtime.Caller(skip)
	dirList := strings.Split(filepath.ToSlash(filepath.Dir(file)), "/")
	dirPath := "./"

	for i, dir := range dirList {
		if dir == cmdDir {
			dirPath = filepath.Join(configDir, filepath.Join(dirList[i+1:]...))
			break
		}
	}
	return dirPath
}
