// Package secrets reads sensitive configuration from Doppler
package secrets

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// lookupTimeout bounds a single `doppler secrets get` invocation
const lookupTimeout = 5 * time.Second

// DopplerClient provides access to secrets stored in Doppler
type DopplerClient struct {
	Project     string
	Config      string
	binary      string
	initialized bool
}

// NewDopplerClient creates a new Doppler client
func NewDopplerClient(project, config string) *DopplerClient {
	return &DopplerClient{
		Project: project,
		Config:  config,
	}
}

// Initialize checks that the Doppler CLI is installed
func (d *DopplerClient) Initialize() error {
	if d.Project == "" {
		return fmt.Errorf("doppler project not configured")
	}

	path, err := exec.LookPath("doppler")
	if err != nil {
		return fmt.Errorf("doppler CLI not found: %w", err)
	}

	d.binary = path
	d.initialized = true
	return nil
}

// GetSecret retrieves a secret, preferring the process environment
// (populated by `doppler run`) over a CLI lookup.
func (d *DopplerClient) GetSecret(key string) (string, error) {
	if !d.initialized {
		if err := d.Initialize(); err != nil {
			return "", err
		}
	}

	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary, "secrets", "get", key,
		"--project", d.Project,
		"--config", d.Config,
		"--plain")

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", key, err)
	}

	return strings.TrimSpace(string(output)), nil
}

// GetSecretWithFallback gets a secret from Doppler with a fallback value
func (d *DopplerClient) GetSecretWithFallback(key, fallback string) string {
	value, err := d.GetSecret(key)
	if err != nil || value == "" {
		return fallback
	}
	return value
}
