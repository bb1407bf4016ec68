// Package schema owns the canonical shape of the metadata tables and heals
// drift at process start. It creates missing tables, adds missing columns,
// migrates renamed legacy columns, and as a last resort rebuilds a table
// from its canonical definition while preserving every salvageable row.
//
// Healing is safe under concurrent cold starts. The only conflict-resolution
// strategy is optimistic retry-by-recheck: when a DDL statement fails, the
// current structure is re-introspected and "already in the desired state"
// counts as success. No locking is used anywhere.
//
// Failure semantics:
//   - Table creation and column ensure failures are fatal (KindSchema);
//     the caller must refuse to serve requests.
//   - Row-level failures during a table rebuild are logged and skipped
//     (KindPersistenceRow), never aborting the batch.
package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/filedock/go-file-backend/internal/domain"
)

// DefaultCategoryName is the category guaranteed to exist after Ensure.
const DefaultCategoryName = "default"

// column describes one canonical column of a metadata table.
type column struct {
	Name string
	Type string // SQLite storage type used for additive ALTERs

	// Required marks columns that must carry a value after a rebuild.
	// Rows missing a required value get the result of DefaultValue
	// substituted instead of being dropped.
	Required     bool
	DefaultValue func() any
}

// table describes one canonical metadata table.
type table struct {
	Name      string
	CreateSQL string
	Columns   []column
	// Legacy maps an old column name to the canonical column that
	// superseded it. Non-null legacy values are copied over where the
	// canonical value is null, then the legacy column is dropped.
	Legacy map[string]string
}

var tables = []table{
	{
		Name: "categories",
		CreateSQL: `CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME
		)`,
		Columns: []column{
			{Name: "name", Type: "TEXT", Required: true, DefaultValue: func() any { return "" }},
			{Name: "created_at", Type: "DATETIME", Required: true, DefaultValue: func() any { return time.Now().UTC() }},
		},
	},
	{
		Name: "user_settings",
		CreateSQL: `CREATE TABLE IF NOT EXISTS user_settings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL UNIQUE,
			storage_type TEXT NOT NULL DEFAULT 'object',
			category_id INTEGER,
			custom_suffix TEXT,
			waiting_for TEXT NOT NULL DEFAULT 'none',
			created_at DATETIME
		)`,
		Columns: []column{
			{Name: "chat_id", Type: "INTEGER", Required: true, DefaultValue: func() any { return 0 }},
			{Name: "storage_type", Type: "TEXT", Required: true, DefaultValue: func() any { return string(domain.StorageObject) }},
			{Name: "category_id", Type: "INTEGER"},
			{Name: "custom_suffix", Type: "TEXT"},
			{Name: "waiting_for", Type: "TEXT", Required: true, DefaultValue: func() any { return string(domain.WaitingNone) }},
			{Name: "created_at", Type: "DATETIME", Required: true, DefaultValue: func() any { return time.Now().UTC() }},
		},
		// One deployed variant carried the category reference under an
		// older name; the canonical column won the rename.
		Legacy: map[string]string{"current_category_id": "category_id"},
	},
	{
		Name: "files",
		CreateSQL: `CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL,
			blob_ref TEXT NOT NULL,
			relay_message_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			file_name TEXT,
			file_size INTEGER,
			mime_type TEXT,
			uploader_chat_id INTEGER,
			storage_type TEXT NOT NULL,
			category_id INTEGER,
			custom_suffix TEXT
		)`,
		Columns: []column{
			{Name: "url", Type: "TEXT", Required: true, DefaultValue: func() any { return "" }},
			{Name: "blob_ref", Type: "TEXT", Required: true, DefaultValue: func() any { return "" }},
			{Name: "relay_message_id", Type: "INTEGER", Required: true, DefaultValue: func() any { return 0 }},
			{Name: "created_at", Type: "DATETIME", Required: true, DefaultValue: func() any { return time.Now().UTC() }},
			{Name: "file_name", Type: "TEXT"},
			{Name: "file_size", Type: "INTEGER"},
			{Name: "mime_type", Type: "TEXT"},
			{Name: "uploader_chat_id", Type: "INTEGER"},
			{Name: "storage_type", Type: "TEXT", Required: true, DefaultValue: func() any { return string(domain.StorageObject) }},
			{Name: "category_id", Type: "INTEGER"},
			{Name: "custom_suffix", Type: "TEXT"},
		},
		Legacy: map[string]string{"current_category_id": "category_id"},
	},
}

// Manager heals the metadata schema. Construct with New and call Ensure
// once per cold start, before anything else touches the database.
type Manager struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New returns a Manager bound to db.
func New(db *gorm.DB, log zerolog.Logger) *Manager {
	return &Manager{db: db, log: log}
}

// Ensure is idempotent and safe to call concurrently from multiple cold
// starts. It creates missing tables and columns, reconciles legacy column
// names, validates the full structure (rebuilding tables that are still
// short), and seeds the guaranteed default category.
func (m *Manager) Ensure(ctx context.Context) error {
	for _, t := range tables {
		if err := m.createTable(ctx, t); err != nil {
			return err
		}
		for _, c := range t.Columns {
			if err := m.ensureColumn(ctx, t.Name, c); err != nil {
				return err
			}
		}
	}
	if err := m.reconcileLegacyColumns(ctx); err != nil {
		return err
	}
	if err := m.validateStructure(ctx); err != nil {
		return err
	}
	return m.seedDefaultCategory(ctx)
}

// createTable issues CREATE TABLE IF NOT EXISTS and falls back to a
// presence recheck when the statement fails (e.g. lost race with another
// instance booting at the same moment).
func (m *Manager) createTable(ctx context.Context, t table) error {
	if err := m.db.WithContext(ctx).Exec(t.CreateSQL).Error; err != nil {
		if m.db.WithContext(ctx).Migrator().HasTable(t.Name) {
			m.log.Debug().Str("table", t.Name).Msg("table appeared after failed create, treating as success")
			return nil
		}
		return domain.E(domain.KindSchema, fmt.Sprintf("create table %s", t.Name), err)
	}
	return nil
}

// ensureColumn introspects the table and issues an additive column change
// when the column is missing. If the ALTER itself fails, the table is
// re-introspected and "column now present" is treated as success.
func (m *Manager) ensureColumn(ctx context.Context, tableName string, c column) error {
	cols, err := m.tableColumns(ctx, tableName)
	if err != nil {
		return domain.E(domain.KindSchema, fmt.Sprintf("introspect %s", tableName), err)
	}
	if _, ok := cols[c.Name]; ok {
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", tableName, c.Name, c.Type)
	if err := m.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		cols, rerr := m.tableColumns(ctx, tableName)
		if rerr == nil {
			if _, ok := cols[c.Name]; ok {
				m.log.Debug().Str("table", tableName).Str("column", c.Name).
					Msg("column appeared after failed alter, treating as success")
				return nil
			}
		}
		return domain.E(domain.KindSchema, fmt.Sprintf("add column %s.%s", tableName, c.Name), err)
	}
	m.log.Info().Str("table", tableName).Str("column", c.Name).Msg("added missing column")
	return nil
}

// reconcileLegacyColumns copies non-null legacy values into their canonical
// column where the canonical value is null, then drops the legacy column.
// Must run before validateStructure so a dangling legacy column never
// triggers a rebuild.
func (m *Manager) reconcileLegacyColumns(ctx context.Context) error {
	for _, t := range tables {
		for legacy, canonical := range t.Legacy {
			cols, err := m.tableColumns(ctx, t.Name)
			if err != nil {
				return domain.E(domain.KindSchema, fmt.Sprintf("introspect %s", t.Name), err)
			}
			if _, ok := cols[legacy]; !ok {
				continue
			}

			copyStmt := fmt.Sprintf(
				"UPDATE %s SET %s = %s WHERE %s IS NULL AND %s IS NOT NULL",
				t.Name, canonical, legacy, canonical, legacy,
			)
			if err := m.db.WithContext(ctx).Exec(copyStmt).Error; err != nil {
				return domain.E(domain.KindSchema, fmt.Sprintf("migrate %s.%s", t.Name, legacy), err)
			}

			dropStmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", t.Name, legacy)
			if err := m.db.WithContext(ctx).Exec(dropStmt).Error; err != nil {
				cols, rerr := m.tableColumns(ctx, t.Name)
				if rerr == nil {
					if _, still := cols[legacy]; !still {
						continue // another instance dropped it first
					}
				}
				return domain.E(domain.KindSchema, fmt.Sprintf("drop legacy column %s.%s", t.Name, legacy), err)
			}
			m.log.Info().Str("table", t.Name).Str("legacy", legacy).Str("canonical", canonical).
				Msg("reconciled legacy column")
		}
	}
	return nil
}

// validateStructure confirms the full required column set for each table.
// A table still short a column after ensureColumn passed is rebuilt from
// the canonical schema.
func (m *Manager) validateStructure(ctx context.Context) error {
	for _, t := range tables {
		cols, err := m.tableColumns(ctx, t.Name)
		if err != nil {
			return domain.E(domain.KindSchema, fmt.Sprintf("introspect %s", t.Name), err)
		}
		complete := true
		for _, c := range t.Columns {
			if _, ok := cols[c.Name]; !ok {
				complete = false
				break
			}
		}
		if complete {
			continue
		}
		if err := m.rebuildTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// rebuildTable dumps all rows, drops and recreates the table from the
// canonical schema, and reinserts the rows, substituting defaults for
// missing or null required fields. Each row is attempted independently;
// a failing row is logged and skipped.
func (m *Manager) rebuildTable(ctx context.Context, t table) error {
	db := m.db.WithContext(ctx)

	var rows []map[string]any
	if err := db.Table(t.Name).Find(&rows).Error; err != nil {
		return domain.E(domain.KindSchema, fmt.Sprintf("dump rows of %s", t.Name), err)
	}

	if err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", t.Name)).Error; err != nil {
		return domain.E(domain.KindSchema, fmt.Sprintf("drop %s", t.Name), err)
	}
	if err := db.Exec(t.CreateSQL).Error; err != nil {
		return domain.E(domain.KindSchema, fmt.Sprintf("recreate %s", t.Name), err)
	}

	kept, skipped := 0, 0
	for _, row := range rows {
		insert := make(map[string]any, len(t.Columns)+1)
		// The surrogate id must survive the rebuild: files and user settings
		// reference categories by id, so a freshly assigned AUTOINCREMENT
		// value would repoint or dangle those references.
		if v, ok := row["id"]; ok && v != nil {
			insert["id"] = v
		}
		for _, c := range t.Columns {
			v, ok := row[c.Name]
			if (!ok || v == nil) && c.Required {
				v = c.DefaultValue()
			}
			if v != nil {
				insert[c.Name] = v
			}
		}
		if err := db.Table(t.Name).Create(&insert).Error; err != nil {
			skipped++
			rowErr := domain.E(domain.KindPersistenceRow, fmt.Sprintf("reinsert row into %s", t.Name), err)
			m.log.Warn().Err(rowErr).Interface("row", row).Msg("skipped row during table rebuild")
			continue
		}
		kept++
	}

	m.log.Info().Str("table", t.Name).Int("kept", kept).Int("skipped", skipped).
		Msg("rebuilt table from canonical schema")
	return nil
}

// seedDefaultCategory guarantees the "default" category exists. Races with
// other cold starts are absorbed by the uniqueness of the name.
func (m *Manager) seedDefaultCategory(ctx context.Context) error {
	stmt := `INSERT INTO categories (name, created_at)
		SELECT ?, ? WHERE NOT EXISTS (SELECT 1 FROM categories WHERE name = ?)`
	err := m.db.WithContext(ctx).Exec(stmt, DefaultCategoryName, time.Now().UTC(), DefaultCategoryName).Error
	if err != nil {
		var n int64
		if cerr := m.db.WithContext(ctx).Table("categories").
			Where("name = ?", DefaultCategoryName).Count(&n).Error; cerr == nil && n > 0 {
			return nil
		}
		return domain.E(domain.KindSchema, "seed default category", err)
	}
	return nil
}

// tableColumns returns the current column set of a table keyed by name.
func (m *Manager) tableColumns(ctx context.Context, tableName string) (map[string]string, error) {
	var rows []struct {
		Name string `gorm:"column:name"`
		Type string `gorm:"column:type"`
	}
	stmt := fmt.Sprintf("PRAGMA table_info(%s)", tableName)
	if err := m.db.WithContext(ctx).Raw(stmt).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Type
	}
	return out, nil
}
