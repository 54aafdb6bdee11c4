package sqlstore

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist. The statements are valid for
// both SQLite and PostgreSQL.
// Groups and items are soft-deleted through deleted_at; every foreign key is
// ON DELETE RESTRICT so ledger rows can never be dropped by a cascade.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    data TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    deleted_at BIGINT
);

CREATE TABLE IF NOT EXISTS group_memberships (
    user_id TEXT NOT NULL,
    group_id TEXT NOT NULL,
    role TEXT NOT NULL,
    joined_at BIGINT NOT NULL,
    PRIMARY KEY (user_id, group_id),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE RESTRICT
);

CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    name TEXT NOT NULL,
    amount BIGINT NOT NULL CHECK (amount >= 0),
    data TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    deleted_at BIGINT,
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE RESTRICT
);

CREATE TABLE IF NOT EXISTS credits (
    user_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    amount BIGINT NOT NULL CHECK (amount >= 0),
    seq INTEGER NOT NULL,
    PRIMARY KEY (user_id, item_id),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE RESTRICT
);

CREATE TABLE IF NOT EXISTS debits (
    user_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    amount BIGINT NOT NULL CHECK (amount >= 0),
    seq INTEGER NOT NULL,
    PRIMARY KEY (user_id, item_id),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE RESTRICT
);

CREATE INDEX IF NOT EXISTS idx_group_memberships_group_id ON group_memberships(group_id);
CREATE INDEX IF NOT EXISTS idx_items_group_id ON items(group_id);
CREATE INDEX IF NOT EXISTS idx_credits_item_id ON credits(item_id);
CREATE INDEX IF NOT EXISTS idx_debits_item_id ON debits(item_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
