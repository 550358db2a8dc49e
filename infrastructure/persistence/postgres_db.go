package persistence

import (
	"database/sql"
	"fmt"
	"net/url"

	"content-pipeline/infrastructure/configuration"

	_ "github.com/lib/pq"
)

// PostgresDSN prefers an explicit URL and otherwise assembles one from parts.
func PostgresDSN(cfg configuration.Db) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	port := cfg.Port
	if port == "" {
		port = "5432"
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%s", cfg.Host, port),
		Path:   "/" + cfg.Name,
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

func NewPostgreSQLDB(cfg configuration.Db) (*sql.DB, error) {
	db, err := sql.Open("postgres", PostgresDSN(cfg))
	if err != nil {
		return nil, err
	}
	configurePool(db)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
