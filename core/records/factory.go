package records

import "fmt"

// Config selects and configures the record store.
type Config struct {
	// Backend is one of "none", "jsonl", "sqlite" or "postgres".
	Backend string `json:"backend"`
	// Path is the file location for the jsonl and sqlite backends.
	Path string `json:"path"`
	// DSN is the connection string for the postgres backend.
	DSN        string `json:"dsn"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "recommendations.db"
		default:
			c.Path = "recommendations.jsonl"
		}
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "none":
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("records: path is required")
		}
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("records: dsn is required for postgres")
		}
	default:
		return fmt.Errorf("records: unknown backend %s", c.Backend)
	}
	return nil
}

// Open creates the store described by c.
func Open(c Config) (Store, error) {
	switch c.Backend {
	case "none":
		return NopStore{}, nil
	case "jsonl":
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(c.Path)
	case "postgres":
		return NewPostgresStore(c.DSN)
	default:
		return nil, fmt.Errorf("records: unknown backend %s", c.Backend)
	}
}
