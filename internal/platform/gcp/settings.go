package gcp

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

type Mode string

const (
	ModeGCS      Mode = "gcs"
	ModeEmulator Mode = "gcs_emulator"
)

// Settings is the resolved backup store target.
type Settings struct {
	Mode         Mode
	Bucket       string
	EmulatorHost string
	// Inferred is set when the mode was not configured and the emulator host
	// picked it.
	Inferred bool
}

func (s Settings) Source() string {
	if s.Inferred {
		return "inferred_from_emulator_host"
	}
	return "configured"
}

type ConfigErrorCode string

const (
	CodeInvalidMode         ConfigErrorCode = "invalid_mode"
	CodeInvalidBucket       ConfigErrorCode = "invalid_bucket"
	CodeMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
	CodeInvalidEmulatorHost ConfigErrorCode = "invalid_emulator_host"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	switch e.Code {
	case CodeInvalidMode:
		return fmt.Sprintf("OBJECT_STORAGE_MODE=%q is not one of %q, %q", e.Value, ModeGCS, ModeEmulator)
	case CodeInvalidBucket:
		return fmt.Sprintf("GCS_BACKUP_BUCKET=%q is not a valid bucket name", e.Value)
	case CodeMissingEmulatorHost:
		return fmt.Sprintf("OBJECT_STORAGE_MODE=%q needs STORAGE_EMULATOR_HOST", ModeEmulator)
	case CodeInvalidEmulatorHost:
		return fmt.Sprintf("STORAGE_EMULATOR_HOST=%q must be an absolute URL such as http://fake-gcs:4443", e.Value)
	}
	return "invalid object store config"
}

func (e *ConfigError) Unwrap() error { return e.Cause }

var bucketName = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,61}[a-z0-9]$`)

// Resolve validates the backup store section. With no mode set, an emulator
// host selects the emulator and anything else selects real GCS.
func (c Config) Resolve() (Settings, error) {
	s := Settings{
		Bucket:       strings.TrimSpace(c.BackupBucket),
		EmulatorHost: strings.TrimRight(strings.TrimSpace(c.EmulatorHost), "/"),
	}
	if s.Bucket != "" && !bucketName.MatchString(s.Bucket) {
		return s, &ConfigError{Code: CodeInvalidBucket, Value: s.Bucket}
	}

	raw := strings.TrimSpace(c.StorageMode)
	switch Mode(strings.ToLower(raw)) {
	case "":
		s.Mode, s.Inferred = ModeGCS, false
		if s.EmulatorHost != "" {
			s.Mode, s.Inferred = ModeEmulator, true
		}
	case ModeGCS:
		s.Mode = ModeGCS
	case ModeEmulator:
		s.Mode = ModeEmulator
	default:
		return s, &ConfigError{Code: CodeInvalidMode, Value: raw}
	}

	if s.Mode != ModeEmulator {
		return s, nil
	}
	if s.EmulatorHost == "" {
		return s, &ConfigError{Code: CodeMissingEmulatorHost}
	}
	u, err := url.Parse(s.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return s, &ConfigError{Code: CodeInvalidEmulatorHost, Value: s.EmulatorHost, Cause: err}
	}
	return s, nil
}
