package database

var schema = map[string][]string{
	"postgres": {
		`CREATE TABLE IF NOT EXISTS leads (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			company VARCHAR(255),
			source VARCHAR(100),
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads (created_at)`,
		`CREATE TABLE IF NOT EXISTS lead_emails (
			id BIGSERIAL PRIMARY KEY,
			lead_id BIGINT NOT NULL REFERENCES leads (id) ON DELETE CASCADE,
			address VARCHAR(255) NOT NULL,
			is_primary BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lead_emails_lead_id ON lead_emails (lead_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uk_lead_emails_primary ON lead_emails (lead_id) WHERE is_primary`,
		`CREATE TABLE IF NOT EXISTS lead_phones (
			id BIGSERIAL PRIMARY KEY,
			lead_id BIGINT NOT NULL REFERENCES leads (id) ON DELETE CASCADE,
			digits VARCHAR(20) NOT NULL,
			is_whatsapp BOOLEAN NOT NULL DEFAULT FALSE,
			is_primary BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lead_phones_lead_id ON lead_phones (lead_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uk_lead_phones_primary ON lead_phones (lead_id) WHERE is_primary`,
	},
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS leads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(255) NOT NULL,
			company VARCHAR(255),
			source VARCHAR(100),
			notes TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads (created_at)`,
		`CREATE TABLE IF NOT EXISTS lead_emails (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			lead_id INTEGER NOT NULL REFERENCES leads (id) ON DELETE CASCADE,
			address VARCHAR(255) NOT NULL,
			is_primary BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lead_emails_lead_id ON lead_emails (lead_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uk_lead_emails_primary ON lead_emails (lead_id) WHERE is_primary = 1`,
		`CREATE TABLE IF NOT EXISTS lead_phones (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			lead_id INTEGER NOT NULL REFERENCES leads (id) ON DELETE CASCADE,
			digits VARCHAR(20) NOT NULL,
			is_whatsapp BOOLEAN NOT NULL DEFAULT 0,
			is_primary BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lead_phones_lead_id ON lead_phones (lead_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uk_lead_phones_primary ON lead_phones (lead_id) WHERE is_primary = 1`,
	},
}
