package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("test-secret"))

	tcases := []struct {
		name        string
		serverAddr  string
		databaseDSN string
		redisURL    string
		secret      string
		origins     []string
		wantErr     string
	}{
		{
			name:        "valid config",
			serverAddr:  "localhost:8000",
			databaseDSN: "host=localhost dbname=marketchat",
			redisURL:    "redis://localhost:6379",
			secret:      secret,
			origins:     []string{"http://localhost:3000"},
		},
		{
			name:        "empty redis url is allowed",
			serverAddr:  "localhost:8000",
			databaseDSN: "host=localhost dbname=marketchat",
			secret:      secret,
		},
		{
			name:        "missing server address",
			databaseDSN: "host=localhost dbname=marketchat",
			secret:      secret,
			wantErr:     "server address cannot be empty",
		},
		{
			name:       "missing database DSN",
			serverAddr: "localhost:8000",
			secret:     secret,
			wantErr:    "database DSN cannot be empty",
		},
		{
			name:        "missing signing secret",
			serverAddr:  "localhost:8000",
			databaseDSN: "host=localhost dbname=marketchat",
			wantErr:     "signing secret cannot be empty",
		},
		{
			name:        "invalid base64 signing secret",
			serverAddr:  "localhost:8000",
			databaseDSN: "host=localhost dbname=marketchat",
			secret:      "not-base64!!!",
			wantErr:     "decode signing secret",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.serverAddr, tc.databaseDSN, tc.redisURL, tc.secret, tc.origins)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				assert.Nil(t, cfg)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.serverAddr, cfg.ServerAddr)
			assert.Equal(t, tc.databaseDSN, cfg.DatabaseDSN)
			assert.Equal(t, tc.redisURL, cfg.RedisURL)
			assert.Equal(t, []byte("test-secret"), cfg.SigningKey)
			assert.Equal(t, tc.origins, cfg.AllowedOrigins)
		})
	}
}
