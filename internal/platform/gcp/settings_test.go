package gcp

import (
	"errors"
	"testing"
)

func TestConfigResolve(t *testing.T) {
	cases := []struct {
		name     string
		in       Config
		wantMode Mode
		inferred bool
		wantErr  ConfigErrorCode
	}{
		{name: "default gcs", in: Config{BackupBucket: "darx-backups"}, wantMode: ModeGCS},
		{name: "explicit gcs ignores host", in: Config{StorageMode: "gcs", EmulatorHost: "http://fake-gcs:4443"}, wantMode: ModeGCS},
		{name: "explicit emulator", in: Config{StorageMode: "GCS_EMULATOR", EmulatorHost: "http://fake-gcs:4443/"}, wantMode: ModeEmulator},
		{name: "inferred emulator", in: Config{EmulatorHost: "http://fake-gcs:4443"}, wantMode: ModeEmulator, inferred: true},
		{name: "invalid mode", in: Config{StorageMode: "s3"}, wantErr: CodeInvalidMode},
		{name: "invalid bucket", in: Config{BackupBucket: "Darx_Backups!"}, wantErr: CodeInvalidBucket},
		{name: "missing host", in: Config{StorageMode: "gcs_emulator"}, wantErr: CodeMissingEmulatorHost},
		{name: "host without scheme", in: Config{StorageMode: "gcs_emulator", EmulatorHost: "fake-gcs:4443"}, wantErr: CodeInvalidEmulatorHost},
	}
	for _, tc := range cases {
		s, err := tc.in.Resolve()
		if tc.wantErr != "" {
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Code != tc.wantErr {
				t.Fatalf("%s: want code=%q got=%v", tc.name, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: Resolve: %v", tc.name, err)
		}
		if s.Mode != tc.wantMode || s.Inferred != tc.inferred {
			t.Fatalf("%s: want mode=%q inferred=%v got mode=%q inferred=%v", tc.name, tc.wantMode, tc.inferred, s.Mode, s.Inferred)
		}
	}
}

func TestSettingsEmulatorHostTrimmed(t *testing.T) {
	s, err := Config{StorageMode: "gcs_emulator", EmulatorHost: " http://fake-gcs:4443/ "}.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.EmulatorHost != "http://fake-gcs:4443" || s.Source() != "configured" {
		t.Fatalf("settings: got=%+v source=%q", s, s.Source())
	}
}

func TestClientOptionsPrefersInlineJSON(t *testing.T) {
	if got := (Config{}).ClientOptions(); got != nil {
		t.Fatalf("ClientOptions: want=nil got=%v", got)
	}
	if got := (Config{CredentialsFile: "/secrets/sa.json"}).ClientOptions(); len(got) != 1 {
		t.Fatalf("file credentials: want=1 option got=%d", len(got))
	}
	if got := (Config{CredentialsJSON: `{"type":"service_account"}`, CredentialsFile: "/secrets/sa.json"}).ClientOptions(); len(got) != 1 {
		t.Fatalf("inline credentials: want=1 option got=%d", len(got))
	}
}
