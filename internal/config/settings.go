package config

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// SettingsFile is the GUI's settings snapshot inside the data dir.
const SettingsFile = "settings.json"

// Settings is the part of the GUI settings the controller reads.
// The file is owned by the GUI and never written here.
type Settings struct {
	RemoteBackendHost  string
	RemoteBackendToken string
}

// LoadSettings reads <dataDir>/settings.json.
func LoadSettings(dataDir string) (*Settings, error) {
	return LoadSettingsFile(filepath.Join(dataDir, SettingsFile))
}

// LoadSettingsFile reads a settings snapshot. Unknown keys are ignored.
func LoadSettingsFile(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return &Settings{
		RemoteBackendHost:  v.GetString("remoteBackendHost"),
		RemoteBackendToken: v.GetString("remoteBackendToken"),
	}, nil
}
