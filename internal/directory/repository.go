package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound indicates a directory lookup miss.
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameTaken indicates a create against an existing username.
var ErrUsernameTaken = errors.New("username already taken")

// Repository is the persistence boundary for user records. This service treats
// these as the only persistence primitives it needs.
type Repository interface {
	Create(ctx context.Context, record Record) error
	FindByUsername(ctx context.Context, username string) (Record, error)
	// FindManyByUsernames returns the records for any of the given usernames.
	// The result order is unspecified relative to the input; callers must
	// match by the Username field, never by position.
	FindManyByUsernames(ctx context.Context, usernames []string) ([]Record, error)
	List(ctx context.Context) ([]Record, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed directory.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `id, username, public_key, encrypted_seed, created_at`

// Create inserts a new record.
func (r *PostgresRepository) Create(ctx context.Context, record Record) error {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, username, public_key, encrypted_seed, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		id, record.Username, record.PublicKey, record.EncryptedSeed, record.CreatedAt.UTC())
	if err != nil && isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

// FindByUsername fetches one record.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM users WHERE username = $1`, username)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrUserNotFound
	}
	return record, err
}

// FindManyByUsernames fetches the records matching any given username.
func (r *PostgresRepository) FindManyByUsernames(ctx context.Context, usernames []string) ([]Record, error) {
	rows, err := r.db.Query(ctx, `SELECT `+recordColumns+` FROM users WHERE username = ANY($1)`, usernames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// List returns every record.
func (r *PostgresRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.Query(ctx, `SELECT `+recordColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		record    Record
	)
	if err := row.Scan(&id, &record.Username, &record.PublicKey, &record.EncryptedSeed, &createdAt); err != nil {
		return Record{}, err
	}
	record.ID = id.String()
	record.CreatedAt = createdAt.UTC()
	return record, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
