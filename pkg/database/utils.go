package database

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDirectoryExists creates the directory for the database file if it doesn't exist
func EnsureDirectoryExists(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." {
		return nil // Current directory
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return nil
}

// DefaultPath returns a default database path inside the user config
// directory, falling back to the working directory.
func DefaultPath(filename string) string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return filename
	}
	return filepath.Join(configDir, "chill", filename)
}

// Size returns the size of the database file in bytes
func Size(dbPath string) (int64, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get database file info: %w", err)
	}

	return info.Size(), nil
}

// Vacuum runs VACUUM on the database to reclaim space after purges
func Vacuum(db *Database) error {
	_, err := db.DB().Exec("VACUUM")
	if err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}

	return nil
}
