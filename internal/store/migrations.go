package store

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    topic            TEXT NOT NULL,
    terms            TEXT NOT NULL DEFAULT '[]',
    post_count       INTEGER NOT NULL DEFAULT 0,
    dominant_emotion TEXT NOT NULL DEFAULT '',
    dominant_share   REAL NOT NULL DEFAULT 0,
    emotion_summary  TEXT NOT NULL DEFAULT '{}',
    total_likes      INTEGER NOT NULL DEFAULT 0,
    avg_likes        REAL NOT NULL DEFAULT 0,
    processing_time  REAL NOT NULL DEFAULT 0,
    origin           TEXT NOT NULL DEFAULT 'api',
    alerted          BOOLEAN NOT NULL DEFAULT 0,
    created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_topic ON analyses(topic);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`
