package assignment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

type SeedConfig struct {
	// File is a JSON assignments document that is imported on startup when the store holds no agencies yet.
	File string `koanf:"file"`
}

// ReadDocument reads an assignments document from a JSON file.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assignments document: %w", err)
	}
	var result Document
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse assignments document %s: %w", path, err)
	}
	return &result, nil
}

// Seed imports the assignments document at path into the store, unless the store already holds agencies.
func Seed(ctx context.Context, store *Store, path string) error {
	if path == "" {
		return nil
	}
	document, err := ReadDocument(path)
	if err != nil {
		return err
	}
	imported, err := store.ImportIfEmpty(ctx, *document)
	if err != nil {
		return err
	}
	if imported {
		log.Info().Msgf("Imported %d agencies from %s", len(document.Agencies), path)
	} else {
		log.Debug().Msg("Assignment store already populated, not seeding")
	}
	return nil
}
