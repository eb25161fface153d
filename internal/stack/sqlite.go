package stack

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/stackguard/internal/model"
)

// SQLiteStore persists stacks in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS stack_items (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        name TEXT NOT NULL,
        kind TEXT NOT NULL,
        dosage TEXT NOT NULL DEFAULT '',
        frequency TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL,
        UNIQUE (user_id, id)
    );

    CREATE TABLE IF NOT EXISTS stack_ingredients (
        user_id TEXT NOT NULL,
        item_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        name TEXT NOT NULL,
        form TEXT NOT NULL DEFAULT '',
        amount REAL NOT NULL DEFAULT 0,
        unit TEXT NOT NULL DEFAULT '',
        PRIMARY KEY (user_id, item_id, position)
    );

    CREATE INDEX IF NOT EXISTS idx_stack_items_user ON stack_items(user_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Add implements Store
func (s *SQLiteStore) Add(ctx context.Context, userID string, item model.StackItem) (model.StackItem, error) {
	item, err := prepare(item)
	if err != nil {
		return model.StackItem{}, err
	}
	user := userKey(userID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StackItem{}, fmt.Errorf("start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stack_items WHERE user_id = ? AND id = ?`, user, item.ID).Scan(&exists); err != nil {
		return model.StackItem{}, fmt.Errorf("check stack item: %w", err)
	}
	if exists > 0 {
		return model.StackItem{}, ErrDuplicateItem
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO stack_items (id, user_id, name, kind, dosage, frequency, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, item.ID, user, item.Name, string(item.Kind), item.Dosage, item.Frequency, time.Now().UTC())
	if err != nil {
		return model.StackItem{}, fmt.Errorf("insert stack item: %w", err)
	}

	for pos, ing := range item.Ingredients {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO stack_ingredients (user_id, item_id, position, name, form, amount, unit)
            VALUES (?, ?, ?, ?, ?, ?, ?)
        `, user, item.ID, pos, ing.Name, ing.Form, ing.Amount, ing.Unit)
		if err != nil {
			return model.StackItem{}, fmt.Errorf("insert ingredient: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.StackItem{}, fmt.Errorf("commit: %w", err)
	}
	return item, nil
}

// Remove implements Store
func (s *SQLiteStore) Remove(ctx context.Context, userID, itemID string) error {
	user := userKey(userID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM stack_items WHERE user_id = ? AND id = ?`, user, itemID)
	if err != nil {
		return fmt.Errorf("delete stack item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM stack_ingredients WHERE user_id = ? AND item_id = ?`, user, itemID); err != nil {
		return fmt.Errorf("delete ingredients: %w", err)
	}

	return tx.Commit()
}

// CurrentStack implements Store
func (s *SQLiteStore) CurrentStack(ctx context.Context, userID string) ([]model.StackItem, error) {
	user := userKey(userID)

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, name, kind, dosage, frequency
        FROM stack_items
        WHERE user_id = ?
        ORDER BY seq
    `, user)
	if err != nil {
		return nil, fmt.Errorf("query stack: %w", err)
	}

	var items []model.StackItem
	index := make(map[string]int)
	for rows.Next() {
		var item model.StackItem
		var kind string
		if err := rows.Scan(&item.ID, &item.Name, &kind, &item.Dosage, &item.Frequency); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan stack item: %w", err)
		}
		item.Kind = model.StackKind(kind)
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate stack: %w", err)
	}
	_ = rows.Close()

	if len(items) == 0 {
		return []model.StackItem{}, nil
	}

	ingRows, err := s.db.QueryContext(ctx, `
        SELECT item_id, name, form, amount, unit
        FROM stack_ingredients
        WHERE user_id = ?
        ORDER BY item_id, position
    `, user)
	if err != nil {
		return nil, fmt.Errorf("query ingredients: %w", err)
	}
	defer func() { _ = ingRows.Close() }()

	for ingRows.Next() {
		var itemID string
		var ing model.Ingredient
		if err := ingRows.Scan(&itemID, &ing.Name, &ing.Form, &ing.Amount, &ing.Unit); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		if i, ok := index[itemID]; ok {
			items[i].Ingredients = append(items[i].Ingredients, ing)
		}
	}
	if err := ingRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingredients: %w", err)
	}

	return items, nil
}
