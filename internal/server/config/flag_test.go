package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:9090", "-d", "db", "-m", "-s", "access", "-k", "refresh",
				"-t", "5", "-r", "60", "-x", "12", "-o=false", "-f", "/tmp/up", "-l", "2",
				"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
				"-w", "http://cdn.example/media",
			},
			expected: &Config{
				EndpointAddrHTTP:             "127.0.0.1:9090",
				DatabaseDSN:                  "db",
				UseMemoryStore:               true,
				AccessTokenSecret:            "access",
				RefreshTokenSecret:           "refresh",
				AccessTokenValidityDuration:  5 * time.Minute,
				RefreshTokenValidityDuration: 60 * time.Minute,
				BcryptCost:                   12,
				CookieSecure:                 false,
				UploadDir:                    "/tmp/up",
				MaxUploadSize:                2 << 20,
				S3RootUser:                   "user",
				S3RootPassword:               "password",
				S3Bucket:                     "bucket",
				S3Region:                     "us-west-1",
				S3BaseEndpoint:               "http://endpoint",
				MediaPublicBaseURL:           "http://cdn.example/media",
			},
		},
		{
			name:        "bad integer",
			args:        []string{"cmd", "-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}
			config.LoadDefaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}

			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestParseFlags_UnknownFlagsIgnored(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"cmd", "-test.v", "-c", "cfg.json", "-a", ":7000"}

	config := &Config{}
	config.LoadDefaults()
	parseFlags(config)

	assert.Equal(t, ":7000", config.EndpointAddrHTTP)
	assert.Equal(t, 15*time.Minute, config.AccessTokenValidityDuration)
}
