package mlol

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// The portal scopes a login to one participating library branch, but
// users rarely know their branch's numeric id. Once discovery finds it,
// the id is persisted as a JSON object keyed "username@domain" so later
// clients skip discovery entirely.

func defaultMappingPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "library_mapping.json"
	}
	return filepath.Join(dir, "mlol", "library_mapping.json")
}

func mappingKey(username, domain string) string {
	return fmt.Sprintf("%s@%s", username, domain)
}

// readLibraryMapping tolerates a missing, empty or corrupt file: all of
// them load as an empty map with at most a log line, never an error.
func readLibraryMapping(path string) map[string]string {
	raw, err := os.ReadFile(path)
	if err != nil || len(raw) == 0 {
		return map[string]string{}
	}

	mapping := map[string]string{}
	err = json.Unmarshal(raw, &mapping)
	if err != nil {
		slog.Warn("couldn't read library mapping file", "path", path, "err", err)
		return map[string]string{}
	}
	return mapping
}

func savedLibraryID(path, username, domain string) string {
	mapping := readLibraryMapping(path)
	id := mapping[mappingKey(username, domain)]
	if id != "" {
		slog.Debug("found library id in mapping file", "key", mappingKey(username, domain))
	}
	return id
}

// updateLibraryMapping records a discovered library id. A corrupt
// existing file is backed up with a timestamp suffix before being
// overwritten, and the write itself goes through a temp file + rename so
// a crash can't leave a truncated mapping behind.
func updateLibraryMapping(path, username, domain, libraryID string) error {
	mapping := map[string]string{}

	raw, err := os.ReadFile(path)
	if err == nil && len(raw) > 0 {
		err = json.Unmarshal(raw, &mapping)
		if err != nil {
			backup := fmt.Sprintf("%s_%d.bak", path, time.Now().Unix())
			slog.Warn(
				"couldn't read library mapping file, backing up and overwriting",
				"path", path,
				"backup", backup,
			)
			if err := os.WriteFile(backup, raw, 0644); err != nil {
				return fmt.Errorf("back up corrupt mapping file: %w", err)
			}
			mapping = map[string]string{}
		}
	}

	mapping[mappingKey(username, domain)] = libraryID

	out, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
