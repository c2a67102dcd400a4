package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/gemini"
	"studio/internal/infra"
	"studio/internal/jobs"
	"studio/internal/storage"
)

// commandContext resolves shared flags into clients and stores lazily, so
// commands that never talk to the provider do not demand an API key.
type commandContext struct {
	serverFlag  *string
	tokenFlag   *string
	userFlag    *string
	apiKeyFlag  *string
	baseURLFlag *string
	dataFlag    *string
	verboseFlag *bool
}

func (c *commandContext) logger() infra.Logger {
	level := zerolog.WarnLevel
	if c.verboseFlag != nil && *c.verboseFlag {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func (c *commandContext) apiKey() (string, error) {
	if c.apiKeyFlag != nil && *c.apiKeyFlag != "" {
		return *c.apiKeyFlag, nil
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("no API key: pass --api-key or set GEMINI_API_KEY")
}

func (c *commandContext) client() (*gemini.Client, error) {
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}
	logger := c.logger()
	baseURL := ""
	if c.baseURLFlag != nil {
		baseURL = *c.baseURLFlag
	}
	return gemini.NewClient(gemini.Options{
		APIKey:  key,
		BaseURL: baseURL,
		Logger:  &logger,
	}), nil
}

// store picks where the job registry lives: the studio server when --server
// is given, a local data directory otherwise.
func (c *commandContext) store() (jobs.Store, error) {
	user := "local"
	if c.userFlag != nil && *c.userFlag != "" {
		user = *c.userFlag
	}
	if c.serverFlag != nil && *c.serverFlag != "" {
		token := ""
		if c.tokenFlag != nil {
			token = *c.tokenFlag
		}
		if token == "" {
			token = os.Getenv("STUDIO_TOKEN")
		}
		if token == "" {
			return nil, fmt.Errorf("no session token: pass --token or set STUDIO_TOKEN")
		}
		return jobs.NewHTTPStore(*c.serverFlag, user, token, &http.Client{Timeout: 30 * time.Second}), nil
	}
	dir := "./data"
	if c.dataFlag != nil && *c.dataFlag != "" {
		dir = *c.dataFlag
	}
	fs, err := storage.NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	return jobs.NewFileStore(fs, user), nil
}

func (c *commandContext) registry() (*jobs.Registry, error) {
	store, err := c.store()
	if err != nil {
		return nil, err
	}
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	return jobs.NewRegistry(store, client, c.logger(), 0), nil
}
