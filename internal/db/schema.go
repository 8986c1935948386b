package db

// SchemaSQL is the complete schema for the image rating core: the three
// logical tables spec.md §6 names (images, choices, app_state) plus the
// catalog's digest-to-path mapping.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS images (
	digest TEXT PRIMARY KEY,
	mu REAL NOT NULL DEFAULT 1500,
	sigma REAL NOT NULL DEFAULT 350,
	exposures INTEGER NOT NULL DEFAULT 0,
	likes INTEGER NOT NULL DEFAULT 0,
	unlikes INTEGER NOT NULL DEFAULT 0,
	skips INTEGER NOT NULL DEFAULT 0,
	last_seen_round INTEGER NOT NULL DEFAULT 0,
	next_eligible_round INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS choices (
	round INTEGER PRIMARY KEY,
	left_digest TEXT NOT NULL,
	right_digest TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK(outcome IN ('LEFT', 'RIGHT', 'SKIP')),
	left_mu_before REAL NOT NULL,
	left_mu_after REAL NOT NULL,
	right_mu_before REAL NOT NULL,
	right_mu_after REAL NOT NULL,
	left_sigma_before REAL NOT NULL,
	left_sigma_after REAL NOT NULL,
	right_sigma_before REAL NOT NULL,
	right_sigma_after REAL NOT NULL,
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS app_state (
	id INTEGER PRIMARY KEY CHECK(id = 1),
	current_round INTEGER NOT NULL DEFAULT 0,
	recent_images TEXT NOT NULL DEFAULT '[]',
	recent_pairs TEXT NOT NULL DEFAULT '[]',
	top_k_history TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS catalog_entries (
	digest TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	size INTEGER NOT NULL,
	mtime INTEGER NOT NULL
);
`

// GetSchemaSQL returns the authoritative schema, for test setup to use
// instead of hardcoding CREATE TABLE statements.
func GetSchemaSQL() string {
	return SchemaSQL
}
