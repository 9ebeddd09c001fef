package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *AppConfig {
	cfg := new(AppConfig)
	cfg.AppID = "course-progress"
	cfg.Env = EnvDevelopment
	cfg.Database.Driver = "postgres"
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.MaxConn = 10
	cfg.Database.Password = "secret"
	cfg.Database.Schema = "course"
	cfg.Database.User = "course"
	cfg.Logging.Level = "info"
	cfg.Security.IDLength = 24
	cfg.Security.JWTMethod = "HS256"
	cfg.Security.JWTSecret = "secret"
	cfg.Security.TokenName = "token"
	cfg.KVStore.Password = "secret"
	cfg.KVStore.Channel = "lesson-events"
	cfg.Course.PageURL = "https://school.example.com/course"
	return cfg
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr []string
	}{
		{name: "valid", mutate: func(*AppConfig) {}},
		{
			name:    "missing app id",
			mutate:  func(c *AppConfig) { c.AppID = "" },
			wantErr: []string{"app_id is required"},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *AppConfig) { c.Database.Driver = "sqlite" },
			wantErr: []string{"database.driver must be one of (mysql postgres)"},
		},
		{
			name:    "relative page url",
			mutate:  func(c *AppConfig) { c.Course.PageURL = "course/page" },
			wantErr: []string{"course.page_url must be an absolute url"},
		},
		{
			name: "several problems",
			mutate: func(c *AppConfig) {
				c.KVStore.Channel = ""
				c.Security.IDLength = 4
			},
			wantErr: []string{"kv.channel is required", "security.id_length must be at least 8"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				for _, msg := range tt.wantErr {
					assert.Contains(t, err.Error(), msg)
				}
			}
		})
	}
}
