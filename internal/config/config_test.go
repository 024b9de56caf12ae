package config

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	// get the prev state that we'll restore
	prev, err := Get()
	if err != nil {
		// if not exists, it must create the config with defaults
		if errors.Is(err, ErrNoConfig) {
			prev, err = Load()
		}
		assert.NotErrorIs(t, err, ErrNoConfig, "failed to get/load config, got: %v", err)
	}
	// defer the call to restore the previous state
	defer func() {
		err := Save(prev)
		assert.NoErrorf(t, err, "failed to restore previous config: %v", err)
	}()
	// now get the file and delete it
	f, err := getUserConfigFile()
	assert.NoErrorf(t, err, "failed to get user config file: %v", err)
	assert.NoError(t, f.Close(), "failed to close user config file: %v", err)
	// remove the file
	assert.NoErrorf(t, os.Remove(f.Name()), "failed to remove user config file: %v", err)

	// now save a new config
	cfg := Config{
		API: APIConfig{
			BaseURL:   "http://review.example.org",
			UseRemote: true,
		},
		Download: DownloadConfig{
			Folder:              "testPath",
			ConcurrentDownloads: 3,
		},
	}

	// save the config
	assert.NoErrorf(t, Save(cfg), "failed to save config: %v", err)

	// now get the config again
	// it must be loaded as Save() method will load the saved config
	saved, err := Get()
	assert.NoErrorf(t, err, "failed to get config: %v", err)
	assert.Exactly(t, cfg, saved, "Saved config does not match expected config")
}

func TestLoadCreatesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	assert.NoErrorf(t, err, "failed to load config: %v", err)
	assert.NotEmpty(t, cfg.API.BaseURL, "default config must carry an API base URL")
	assert.NotEmpty(t, cfg.Download.Folder, "default config must carry a download folder")
	assert.DirExists(t, cfg.Download.Folder, "default download folder must be created")
}
