package database

import (
	"database/sql"
)

type PgCodePrepRepository struct {
	conn *sql.DB
}

func NewPgCodePrepRepository(dsn string) (*PgCodePrepRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgCodePrepRepository{conn: db}, nil
}

func (db *PgCodePrepRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgCodePrepRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
