package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS listings (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    developer   TEXT NOT NULL DEFAULT '',
    rating      REAL NOT NULL DEFAULT 0,
    free        BOOLEAN NOT NULL DEFAULT 1,
    category_id TEXT NOT NULL DEFAULT '',
    reviews     INTEGER NOT NULL DEFAULT 0,
    installs    INTEGER NOT NULL DEFAULT 0,
    updated     DATETIME NOT NULL,
    url         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category_id);
CREATE INDEX IF NOT EXISTS idx_listings_installs ON listings(installs);

CREATE TABLE IF NOT EXISTS rankings (
    kind     TEXT NOT NULL,
    ref      TEXT NOT NULL,
    position INTEGER NOT NULL,
    app_id   TEXT NOT NULL,
    PRIMARY KEY (kind, ref, position)
);

CREATE TABLE IF NOT EXISTS suggestions (
    term       TEXT NOT NULL,
    position   INTEGER NOT NULL,
    suggestion TEXT NOT NULL,
    PRIMARY KEY (term, position)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS listings (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    developer   TEXT NOT NULL DEFAULT '',
    rating      DOUBLE PRECISION NOT NULL DEFAULT 0,
    free        BOOLEAN NOT NULL DEFAULT TRUE,
    category_id TEXT NOT NULL DEFAULT '',
    reviews     BIGINT NOT NULL DEFAULT 0,
    installs    BIGINT NOT NULL DEFAULT 0,
    updated     TIMESTAMPTZ NOT NULL,
    url         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category_id);
CREATE INDEX IF NOT EXISTS idx_listings_installs ON listings(installs);

CREATE TABLE IF NOT EXISTS rankings (
    kind     TEXT NOT NULL,
    ref      TEXT NOT NULL,
    position INTEGER NOT NULL,
    app_id   TEXT NOT NULL,
    PRIMARY KEY (kind, ref, position)
);

CREATE TABLE IF NOT EXISTS suggestions (
    term       TEXT NOT NULL,
    position   INTEGER NOT NULL,
    suggestion TEXT NOT NULL,
    PRIMARY KEY (term, position)
);
`
