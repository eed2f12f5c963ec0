package gcp

import (
	"strings"

	"google.golang.org/api/option"
)

// Config is the object store section of the service configuration.
type Config struct {
	StorageMode     string `env:"OBJECT_STORAGE_MODE"`
	EmulatorHost    string `env:"STORAGE_EMULATOR_HOST"`
	BackupBucket    string `env:"GCS_BACKUP_BUCKET"`
	CredentialsJSON string `env:"GOOGLE_APPLICATION_CREDENTIALS_JSON"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// ClientOptions turns the configured credentials into client options. Inline JSON
// wins over a file path; neither means application default credentials.
func (c Config) ClientOptions() []option.ClientOption {
	creds := strings.TrimSpace(c.CredentialsJSON)
	if creds == "" {
		creds = strings.TrimSpace(c.CredentialsFile)
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
