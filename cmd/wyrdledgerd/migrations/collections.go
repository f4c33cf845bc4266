// ABOUTME: PocketBase collections migration for wyrdledgerd.
// ABOUTME: Creates collections for per-user partitions and refresh tokens.

package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		// partitions collection: one record per (user, collection name),
		// holding the full snapshot and the server write time.
		partitions := core.NewBaseCollection("partitions")
		partitions.Fields.Add(
			&core.TextField{
				Name:     "user_id",
				Required: true,
			},
			&core.TextField{
				Name:     "name",
				Required: true,
			},
			&core.TextField{
				Name: "items",
				Max:  10_000_000,
			},
			&core.NumberField{
				Name:     "updated_at",
				Required: true,
			},
		)
		partitions.AddIndex("idx_partitions_user_name", true, "user_id, name", "")
		partitions.AddIndex("idx_partitions_user", false, "user_id", "")
		if err := app.Save(partitions); err != nil {
			return err
		}

		// refresh_tokens collection: single-use tokens for persistent sessions.
		tokens := core.NewBaseCollection("refresh_tokens")
		tokens.Fields.Add(
			&core.TextField{
				Name:     "user",
				Required: true,
			},
			&core.TextField{
				Name:     "token_hash",
				Required: true,
			},
			&core.DateField{
				Name:     "expires",
				Required: true,
			},
		)
		tokens.AddIndex("idx_refresh_tokens_hash", true, "token_hash", "")
		tokens.AddIndex("idx_refresh_tokens_user", false, "user", "")
		return app.Save(tokens)
	}, func(app core.App) error {
		for _, name := range []string{"partitions", "refresh_tokens"} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
