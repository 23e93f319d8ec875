package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ContrejfC/ai-bookkeeper/internal/calibrate"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/ContrejfC/ai-bookkeeper/internal/storage"
)

// openStorage opens the configured SQLite database, creating the default
// location when none is configured.
func openStorage() (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "bookkeeper", "bookkeeper.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return store, nil
}

// loadCalibrator loads the configured calibration table. With no table, or a
// table that fails validation, decisions fail closed to probability 0.
func loadCalibrator() *calibrate.Calibrator {
	path := viper.GetString("calibration.table")
	if path == "" {
		slog.Warn("No calibration table configured; probabilities fail closed to 0")
		return calibrate.New(nil)
	}

	table, err := calibrate.LoadTable(path)
	if err != nil {
		slog.Warn("Failed to load calibration table; probabilities fail closed to 0",
			"path", path,
			"error", err)
		return calibrate.New(nil)
	}

	slog.Info("Loaded calibration table",
		"path", path,
		"version", table.Version,
		"method", table.Method)
	return calibrate.New(table)
}

// loadRecords reads a JSON array of records from a file.
func loadRecords(path string) ([]model.Record, error) {
	var records []model.Record
	if err := decodeJSONFile(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// decodeJSONFile reads one JSON document into out.
func decodeJSONFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	decoder := json.NewDecoder(f)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
