package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PubkeyStore = (*PubkeyRepo)(nil)

// selectColumns is the id followed by every persisted field, in table order.
var selectColumns = strings.Join(append([]string{model.FieldID}, model.PersistedFieldNames...), ", ")

// PubkeyRepo is the SQLite implementation of the PubkeyStore port interface.
// Columns are exactly the keys of model.Pubkey.PersistedFields.
type PubkeyRepo struct {
	db *DB
}

// NewPubkeyRepo creates a new PubkeyRepo backed by the given DB.
func NewPubkeyRepo(db *DB) *PubkeyRepo {
	return &PubkeyRepo{db: db}
}

// Create inserts a new key and sets its assigned id on key.
func (r *PubkeyRepo) Create(ctx context.Context, key *model.Pubkey) error {
	if key.IsPersisted() {
		return fmt.Errorf("create pubkey %q: already has id %d", key.Nickname(), key.ID())
	}

	fields := key.PersistedFields()
	args := make([]any, 0, len(model.PersistedFieldNames))
	for _, name := range model.PersistedFieldNames {
		args = append(args, fields[name])
	}

	query := fmt.Sprintf(
		`INSERT INTO pubkeys (%s) VALUES (%s)`,
		strings.Join(model.PersistedFieldNames, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(model.PersistedFieldNames)), ", "),
	)

	result, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create pubkey %q: %w", key.Nickname(), driven.ErrNicknameTaken)
		}
		return fmt.Errorf("create pubkey %q: %w", key.Nickname(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get inserted pubkey id: %w", err)
	}
	key.SetID(id)

	return nil
}

// Update overwrites every persisted field of an existing key.
func (r *PubkeyRepo) Update(ctx context.Context, key *model.Pubkey) error {
	if !key.IsPersisted() {
		return fmt.Errorf("update pubkey %q: %w", key.Nickname(), driven.ErrPubkeyNotFound)
	}

	fields := key.PersistedFields()
	sets := make([]string, 0, len(model.PersistedFieldNames))
	args := make([]any, 0, len(model.PersistedFieldNames)+1)
	for _, name := range model.PersistedFieldNames {
		sets = append(sets, name+" = ?")
		args = append(args, fields[name])
	}
	args = append(args, key.ID())

	query := fmt.Sprintf(
		`UPDATE pubkeys SET %s, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		strings.Join(sets, ", "),
	)

	result, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update pubkey %d: %w", key.ID(), driven.ErrNicknameTaken)
		}
		return fmt.Errorf("update pubkey %d: %w", key.ID(), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update pubkey %d: %w", key.ID(), driven.ErrPubkeyNotFound)
	}

	return nil
}

// GetByID returns the key with the given id, or ErrPubkeyNotFound.
func (r *PubkeyRepo) GetByID(ctx context.Context, id int64) (*model.Pubkey, error) {
	query := `SELECT ` + selectColumns + ` FROM pubkeys WHERE id = ?`

	key, err := scanPubkey(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get pubkey %d: %w", id, driven.ErrPubkeyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pubkey %d: %w", id, err)
	}
	return key, nil
}

// GetByNickname returns the key with the given nickname, or ErrPubkeyNotFound.
func (r *PubkeyRepo) GetByNickname(ctx context.Context, nickname string) (*model.Pubkey, error) {
	query := `SELECT ` + selectColumns + ` FROM pubkeys WHERE nickname = ?`

	key, err := scanPubkey(r.db.Reader.QueryRowContext(ctx, query, nickname))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get pubkey %q: %w", nickname, driven.ErrPubkeyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pubkey %q: %w", nickname, err)
	}
	return key, nil
}

// ListAll returns every key ordered by nickname.
func (r *PubkeyRepo) ListAll(ctx context.Context) ([]*model.Pubkey, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM pubkeys ORDER BY nickname`)
}

// ListStartup returns keys flagged for unlocking at startup, ordered by nickname.
func (r *PubkeyRepo) ListStartup(ctx context.Context) ([]*model.Pubkey, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM pubkeys WHERE startup = 1 ORDER BY nickname`)
}

// Delete removes a key by id. Returns ErrPubkeyNotFound if it does not exist.
func (r *PubkeyRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM pubkeys WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete pubkey %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete pubkey %d: %w", id, driven.ErrPubkeyNotFound)
	}

	return nil
}

func (r *PubkeyRepo) list(ctx context.Context, query string) ([]*model.Pubkey, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pubkeys: %w", err)
	}
	defer rows.Close()

	keys := []*model.Pubkey{}
	for rows.Next() {
		key, err := scanPubkey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pubkey: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pubkeys: %w", err)
	}

	return keys, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanPubkey reads one row of selectColumns into a column map and rebuilds the
// record from it.
func scanPubkey(s scanner) (*model.Pubkey, error) {
	names := append([]string{model.FieldID}, model.PersistedFieldNames...)
	values := make([]any, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(names))
	for i, name := range names {
		fields[name] = values[i]
	}

	return model.PubkeyFromFields(fields)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Primary result code only when extended codes are disabled.
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE")
}
