package storage

const sqliteSchema = `
-- Deck sources: a local directory or a git repository of deck files.
CREATE TABLE IF NOT EXISTS sources (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    path TEXT NOT NULL,
    language TEXT NOT NULL,
    last_scanned DATETIME,
    created_at DATETIME NOT NULL,
    UNIQUE(user_id, path)
);

CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    content_id TEXT,
    language TEXT NOT NULL,
    front_text TEXT NOT NULL,
    back_text TEXT NOT NULL,
    details TEXT,
    source_id TEXT REFERENCES sources(id) ON DELETE SET NULL,
    source_hash TEXT,

    stability REAL NOT NULL DEFAULT 0,
    difficulty REAL NOT NULL DEFAULT 0,
    state INTEGER NOT NULL DEFAULT 0, -- 0: New, 1: Learning, 2: Review, 3: Relearning
    learning_steps INTEGER NOT NULL DEFAULT 0,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    due_date DATETIME NOT NULL,
    last_reviewed_at DATETIME,

    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_cards_user_due ON cards(user_id, due_date);
CREATE INDEX IF NOT EXISTS idx_cards_user_created ON cards(user_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_source_hash ON cards(source_id, source_hash);

CREATE TABLE IF NOT EXISTS review_logs (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    rating INTEGER NOT NULL,
    state_before INTEGER NOT NULL,
    state_after INTEGER NOT NULL,
    elapsed_days REAL NOT NULL,
    scheduled_days REAL NOT NULL,
    reps INTEGER NOT NULL,
    due_date DATETIME NOT NULL,
    reviewed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(card_id, reviewed_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sources (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    path TEXT NOT NULL,
    language TEXT NOT NULL,
    last_scanned TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL,
    UNIQUE(user_id, path)
);

CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    content_id TEXT,
    language TEXT NOT NULL,
    front_text TEXT NOT NULL,
    back_text TEXT NOT NULL,
    details JSONB,
    source_id TEXT REFERENCES sources(id) ON DELETE SET NULL,
    source_hash TEXT,

    stability DOUBLE PRECISION NOT NULL DEFAULT 0,
    difficulty DOUBLE PRECISION NOT NULL DEFAULT 0,
    state SMALLINT NOT NULL DEFAULT 0,
    learning_steps INTEGER NOT NULL DEFAULT 0,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    due_date TIMESTAMPTZ NOT NULL,
    last_reviewed_at TIMESTAMPTZ,

    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_cards_user_due ON cards(user_id, due_date);
CREATE INDEX IF NOT EXISTS idx_cards_user_created ON cards(user_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_source_hash ON cards(source_id, source_hash);

CREATE TABLE IF NOT EXISTS review_logs (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    rating SMALLINT NOT NULL,
    state_before SMALLINT NOT NULL,
    state_after SMALLINT NOT NULL,
    elapsed_days DOUBLE PRECISION NOT NULL,
    scheduled_days DOUBLE PRECISION NOT NULL,
    reps INTEGER NOT NULL,
    due_date TIMESTAMPTZ NOT NULL,
    reviewed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(card_id, reviewed_at);
`
