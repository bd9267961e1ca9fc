package store

import (
	"github.com/jmoiron/sqlx"
)

type PgChatRepository struct {
	conn *sqlx.DB
}

func NewPgChatRepository(dsn string) (*PgChatRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}

	return &PgChatRepository{conn: db}, nil
}

func (db *PgChatRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgChatRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
