package db

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
)

const schema = `CREATE TABLE IF NOT EXISTS tasks (
	task_id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	title TEXT NOT NULL,
	due_at TIMESTAMP NOT NULL,
	remind BOOLEAN NOT NULL DEFAULT FALSE,
	done BOOLEAN NOT NULL DEFAULT FALSE
)`

type Database struct {
	db *sql.DB
}

func NewDatabase(connStr string) (*Database, error) {
	// connection string should look like postgresql://localhost:5432/myrhythm?user=admn&password=passwd
	d, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}

	if err = d.Ping(); err != nil {
		return nil, err
	}

	if _, err = d.Exec(schema); err != nil {
		d.Close()
		return nil, errors.Wrap(err, "failed initializing schema")
	}

	return &Database{db: d}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
