package store

import (
	"fmt"
	"strings"

	"github.com/oakdental/frontdesk/internal/config"
)

// ddl holds the column types that differ between dialects.
type ddl struct {
	id        string
	text      string
	key       string // indexed or unique text columns
	timestamp string
}

var dialectDDL = map[string]ddl{
	config.DriverSQLite: {
		id:        "INTEGER PRIMARY KEY AUTOINCREMENT",
		text:      "TEXT",
		key:       "TEXT",
		timestamp: "DATETIME",
	},
	config.DriverPostgres: {
		id:        "BIGSERIAL PRIMARY KEY",
		text:      "TEXT",
		key:       "TEXT",
		timestamp: "TIMESTAMPTZ",
	},
	config.DriverMySQL: {
		id:        "BIGINT AUTO_INCREMENT PRIMARY KEY",
		text:      "TEXT",
		key:       "VARCHAR(255)",
		timestamp: "DATETIME(6)",
	},
}

func (s *Store) migrations() []string {
	d := dialectDDL[s.dialect]
	mysql := s.dialect == config.DriverMySQL

	// MySQL has no CREATE INDEX IF NOT EXISTS, so its indexes live inline.
	index := func(name, table, col string) string {
		if mysql {
			return ""
		}
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", name, table, col)
	}
	inline := func(name, col string) string {
		if !mysql {
			return ""
		}
		return fmt.Sprintf(",\n\t\t\tINDEX %s (%s)", name, col)
	}
	mysqlText := func(col string) string {
		// MySQL TEXT columns cannot carry a literal default.
		if mysql {
			return col + " " + d.text + " NOT NULL"
		}
		return col + " " + d.text + " NOT NULL DEFAULT ''"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS admins (
			id ` + d.id + `,
			name ` + d.key + ` NOT NULL DEFAULT '',
			email ` + d.key + ` NOT NULL UNIQUE,
			password_hash ` + d.key + ` NOT NULL,
			created_at ` + d.timestamp + ` NOT NULL,
			updated_at ` + d.timestamp + ` NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS otps (
			id ` + d.id + `,
			email ` + d.key + ` NOT NULL,
			code ` + d.key + ` NOT NULL,
			created_at ` + d.timestamp + ` NOT NULL,
			expires_at ` + d.timestamp + ` NOT NULL` + inline("idx_otps_email", "email") + `
		)`,
		index("idx_otps_email", "otps", "email"),

		`CREATE TABLE IF NOT EXISTS appointments (
			id ` + d.id + `,
			name ` + d.key + ` NOT NULL,
			email ` + d.key + ` NOT NULL,
			phone ` + d.key + ` NOT NULL DEFAULT '',
			date ` + d.key + ` NOT NULL,
			` + mysqlText("message") + `,
			status ` + d.key + ` DEFAULT 'pending',
			reason ` + d.text + `,
			created_at ` + d.timestamp + ` NOT NULL` + inline("idx_appointments_status", "status") + `
		)`,
		index("idx_appointments_status", "appointments", "status"),

		`CREATE TABLE IF NOT EXISTS messages (
			id ` + d.id + `,
			full_name ` + d.key + ` NOT NULL,
			email ` + d.key + ` NOT NULL,
			message ` + d.text + ` NOT NULL,
			created_at ` + d.timestamp + ` NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS subscribers (
			id ` + d.id + `,
			email ` + d.key + ` NOT NULL UNIQUE,
			subscribed_on ` + d.timestamp + ` NOT NULL
		)`,

		// v2: single-use reset grants issued after OTP verification.
		`CREATE TABLE IF NOT EXISTS reset_grants (
			id ` + d.id + `,
			email ` + d.key + ` NOT NULL,
			token_hash ` + d.key + ` NOT NULL UNIQUE,
			created_at ` + d.timestamp + ` NOT NULL,
			expires_at ` + d.timestamp + ` NOT NULL
		)`,

		// v3: optional admin phone for SMS delivery of reset codes.
		`ALTER TABLE admins ADD COLUMN phone ` + d.key + ` NOT NULL DEFAULT ''`,

		// Rows written before status had a default are treated as pending.
		`UPDATE appointments SET status = 'pending' WHERE status IS NULL`,
	}
}

func (s *Store) migrate() error {
	for _, m := range s.migrations() {
		if m == "" {
			continue
		}
		if _, err := s.db.Exec(m); err != nil {
			// ALTER TABLE ADD COLUMN fails if the column already exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || // sqlite, mysql
		strings.Contains(msg, "already exists") // postgres
}
