package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP NOT NULL,
    before_dir TEXT NOT NULL,
    after_dir TEXT NOT NULL,
    status_code INTEGER NOT NULL,
    summary TEXT
);

CREATE TABLE IF NOT EXISTS run_packages (
    run_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    package TEXT NOT NULL,
    compressed_delta INTEGER NOT NULL,
    uncompressed_delta INTEGER NOT NULL,
    PRIMARY KEY (run_id, package),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_packages_package ON run_packages(package);
`
