package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// DefaultProfileName is used when neither the flag nor the config names one.
const DefaultProfileName = "default"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateProfileName checks that name conforms to profile naming rules.
func ValidateProfileName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// BaseDir returns ~/.parley.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".parley")
}

// ProfileDir returns the profile-specific directory.
func ProfileDir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// DBPath returns the app-owned parley.db path for a profile.
func DBPath(name string) string {
	return filepath.Join(ProfileDir(name), "parley.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(ProfileDir(name), "logs")
}

// LogPath returns the log file path for a profile.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "parley.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureProfileDir creates the profile directory tree with proper permissions.
func EnsureProfileDir(name string) error {
	dirs := []string{
		ProfileDir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
