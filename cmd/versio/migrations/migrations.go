package migrations

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/versio-data/versio/common/db"
)

//go:embed schema.sql
var schemaSQL string

// Apply creates the schema if it does not exist yet.
// Intended for the bootstrap DB init hook.
func Apply(database *db.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := database.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}
