// Package sqlite provides a persistence.DocumentInteractor backed by SQLite.
// Every collection is a table of encoded documents; filters on _id are pushed
// down to SQL and the rest is evaluated by the persistence layer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asaidimu/go-aggregate/core/persistence"
	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// insertBatchSize bounds the rows of one INSERT statement, keeping the
// number of bound parameters well under SQLite's limit.
const insertBatchSize = 400

// dbRunner abstracts the common methods of *sql.DB and *sql.Tx, so the same
// code runs inside and outside a transaction.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Interactor implements persistence.DocumentInteractor for SQLite.
type Interactor struct {
	db        *sql.DB
	generator query.QueryGenerator
	logger    *zap.Logger
	options   *Options
}

var _ persistence.DocumentInteractor = (*Interactor)(nil)

// Open opens the SQLite database at path (":memory:" for a private in-memory
// database) and returns an interactor owning the connection.
func Open(path string, logger *zap.Logger, options *Options) (*Interactor, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}
	return NewInteractor(db, logger, options), nil
}

// NewInteractor creates an interactor over an open database.
func NewInteractor(db *sql.DB, logger *zap.Logger, options *Options) *Interactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultOptions()
	}
	return &Interactor{
		db:        db,
		generator: NewGenerator(),
		logger:    logger,
		options:   options,
	}
}

// CreateCollection creates the collection table if it does not exist.
func (i *Interactor) CreateCollection(ctx context.Context, name string) error {
	stmt := CreateTableSQL(i.tableName(name))
	i.logger.Debug("Executing SQL CREATE TABLE", zap.String("sql", stmt))
	if _, err := i.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table for collection %s: %w", name, err)
	}
	return nil
}

// DropCollection drops the collection table.
func (i *Interactor) DropCollection(ctx context.Context, name string) error {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoteIdentifier(i.tableName(name)))
	i.logger.Debug("Executing SQL DROP TABLE", zap.String("sql", stmt))
	if _, err := i.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to drop table for collection %s: %w", name, err)
	}
	return nil
}

// CollectionExists checks if the collection table exists.
func (i *Interactor) CollectionExists(ctx context.Context, name string) (bool, error) {
	return i.exists(ctx, i.db, name)
}

func (i *Interactor) exists(ctx context.Context, r dbRunner, name string) (bool, error) {
	var found string
	err := r.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?;",
		i.tableName(name),
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up collection %s: %w", name, err)
	}
	return true, nil
}

func (i *Interactor) mustExist(ctx context.Context, r dbRunner, name string) error {
	ok, err := i.exists(ctx, r, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", persistence.ErrCollectionNotFound, name)
	}
	return nil
}

// SelectDocuments returns the collection's documents in insertion order,
// narrowed by the _id conditions of filter.
func (i *Interactor) SelectDocuments(ctx context.Context, name string, filter *query.QueryFilter) ([]schema.Document, error) {
	if err := i.mustExist(ctx, i.db, name); err != nil {
		return nil, err
	}

	sqlQuery, params, err := i.generator.GenerateSelectSQL(i.tableName(name), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL query: %w", err)
	}
	i.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.Any("params", params))

	rows, err := i.db.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		i.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	defer rows.Close()

	docs := []schema.Document{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc, err := decodeRow(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return docs, nil
}

// InsertDocuments inserts the documents in one transaction.
func (i *Interactor) InsertDocuments(ctx context.Context, name string, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]string, len(docs))
	bodies := make([]string, len(docs))
	for n, doc := range docs {
		id, body, err := encodeRow(doc)
		if err != nil {
			return fmt.Errorf("document %d: %w", n, err)
		}
		ids[n], bodies[n] = id, body
	}

	return i.withTx(ctx, func(tx dbRunner) error {
		if err := i.mustExist(ctx, tx, name); err != nil {
			return err
		}
		for start := 0; start < len(ids); start += insertBatchSize {
			end := min(start+insertBatchSize, len(ids))
			sqlQuery, params, err := i.generator.GenerateInsertSQL(i.tableName(name), ids[start:end], bodies[start:end])
			if err != nil {
				return fmt.Errorf("failed to generate INSERT SQL: %w", err)
			}
			i.logger.Debug("Executing SQL INSERT", zap.String("sql", sqlQuery), zap.Int("rows", end-start))
			if _, err := tx.ExecContext(ctx, sqlQuery, params...); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %v", persistence.ErrDuplicateID, err)
				}
				i.logger.Error("Failed to execute INSERT query", zap.Error(err))
				return fmt.Errorf("failed to execute INSERT query: %w", err)
			}
		}
		return nil
	})
}

// ReplaceDocuments rewrites the bodies of stored documents in one
// transaction. Unknown identities are ignored.
func (i *Interactor) ReplaceDocuments(ctx context.Context, name string, docs []schema.Document) (int64, error) {
	var replaced int64
	err := i.withTx(ctx, func(tx dbRunner) error {
		if err := i.mustExist(ctx, tx, name); err != nil {
			return err
		}
		for n, doc := range docs {
			id, body, err := encodeRow(doc)
			if err != nil {
				return fmt.Errorf("document %d: %w", n, err)
			}
			sqlQuery, params, err := i.generator.GenerateReplaceSQL(i.tableName(name), id, body)
			if err != nil {
				return fmt.Errorf("failed to generate UPDATE SQL: %w", err)
			}
			result, err := tx.ExecContext(ctx, sqlQuery, params...)
			if err != nil {
				i.logger.Error("Failed to execute UPDATE query", zap.Error(err), zap.String("sql", sqlQuery))
				return fmt.Errorf("failed to execute UPDATE query: %w", err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			replaced += affected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return replaced, nil
}

// DeleteDocuments deletes documents by _id.
func (i *Interactor) DeleteDocuments(ctx context.Context, name string, ids []any) (int64, error) {
	if err := i.mustExist(ctx, i.db, name); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	for n, id := range ids {
		keys[n] = schema.KeyOf(schema.Normalize(id))
	}

	sqlQuery, params, err := i.generator.GenerateDeleteSQL(i.tableName(name), keys)
	if err != nil {
		return 0, fmt.Errorf("failed to generate DELETE SQL: %w", err)
	}
	i.logger.Debug("Executing SQL DELETE", zap.String("sql", sqlQuery), zap.Any("params", params))

	result, err := i.db.ExecContext(ctx, sqlQuery, params...)
	if err != nil {
		i.logger.Error("Failed to execute DELETE query", zap.Error(err), zap.String("sql", sqlQuery))
		return 0, fmt.Errorf("failed to execute DELETE query: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database.
func (i *Interactor) Close() error {
	return i.db.Close()
}

// withTx runs fn in a transaction, committing when it succeeds and rolling
// back otherwise.
func (i *Interactor) withTx(ctx context.Context, fn func(tx dbRunner) error) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			i.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
