package database

import (
	"database/sql"
)

type PgConvoRepository struct {
	conn *sql.DB
}

func NewPgConvoRepository(dsn string) (*PgConvoRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgConvoRepository{conn: db}, nil
}

func (db *PgConvoRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgConvoRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
