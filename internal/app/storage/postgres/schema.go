package postgres

// schema is the DDL applied by EnsureSchema. Statements are idempotent so
// the service can run it on every start.
const schema = `
CREATE TABLE IF NOT EXISTS catalog_products (
	id          TEXT PRIMARY KEY,
	sku         TEXT UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       DOUBLE PRECISION NOT NULL,
	tax         DOUBLE PRECISION,
	stock       INTEGER NOT NULL DEFAULT 0,
	tags        JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'member',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_uploads (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	filename     TEXT NOT NULL,
	stored_path  TEXT NOT NULL,
	size         BIGINT NOT NULL,
	checksum     TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_events (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	payload       JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL,
	dispatched_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS catalog_events_pending_idx
	ON catalog_events (created_at) WHERE dispatched_at IS NULL;
`
