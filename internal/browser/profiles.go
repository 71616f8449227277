package browser

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ListProfiles returns the Chrome profile directory names found under
// userDataDir ("Default", "Profile 1", ...). A missing directory is not an
// error; it just yields no profiles.
func ListProfiles(userDataDir string) ([]string, error) {
	entries, err := os.ReadDir(userDataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading user data dir %s: %w", userDataDir, err)
	}

	var profiles []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "Default" || strings.HasPrefix(name, "Profile") {
			profiles = append(profiles, name)
		}
	}
	sort.Strings(profiles)
	return profiles, nil
}

// HasProfile reports whether name is among the profiles under userDataDir.
func HasProfile(userDataDir, name string) bool {
	profiles, err := ListProfiles(userDataDir)
	if err != nil {
		return false
	}
	for _, p := range profiles {
		if p == name {
			return true
		}
	}
	return false
}
