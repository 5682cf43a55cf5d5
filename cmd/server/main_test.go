package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockpilot/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsShortSecret(t *testing.T) {
	cfg := config.Config{Auth: config.AuthConfig{Secret: "short"}}
	assert.Error(t, validateSecurityConfig(cfg))
}

func TestValidateSecurityConfigRequiresDatabaseInProduction(t *testing.T) {
	cfg := config.Config{
		App:  config.AppConfig{Env: "production"},
		Auth: config.AuthConfig{Secret: strongSecret},
	}
	assert.Error(t, validateSecurityConfig(cfg))

	cfg.DB.URL = "postgres://localhost/stockpilot"
	assert.NoError(t, validateSecurityConfig(cfg))
}

func TestValidateSecurityConfigAcceptsDevDefaults(t *testing.T) {
	cfg := config.Config{
		App:  config.AppConfig{Env: "dev"},
		Auth: config.AuthConfig{Secret: strongSecret},
	}
	assert.NoError(t, validateSecurityConfig(cfg))
}
