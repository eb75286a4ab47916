package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"

	perrors "github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/migration"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/migrations"
)

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

// PostgresStore is the production Store. Reminder timing is kept as the same
// JSON document the local snapshot uses, next to a few queryable columns.
type PostgresStore struct {
	connStr string
	schema  string
	db      *sql.DB
}

// NewPostgres prepares a store for connStr. Tables live in schema, which is
// added to the connection's search_path unless one is already set.
func NewPostgres(connStr, schema string) *PostgresStore {
	s := &PostgresStore{connStr: connStr, schema: schema}
	s.ensureSearchPath()
	return s
}

// ConnString is the connection string with search_path applied. The change
// feed dials with it.
func (s *PostgresStore) ConnString() string { return s.connStr }

func (s *PostgresStore) ensureSearchPath() {
	if strings.HasPrefix(s.connStr, "postgres://") || strings.HasPrefix(s.connStr, "postgresql://") {
		u, err := url.Parse(s.connStr)
		if err != nil {
			logger.Warn("Failed to parse Postgres connection string", "error", err)
			return
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", s.schema)
			u.RawQuery = q.Encode()
			s.connStr = u.String()
		}
		return
	}
	if !hasSearchPathParam(s.connStr) {
		s.connStr = strings.TrimSpace(s.connStr) + " search_path=" + s.schema
	}
}

// hasSearchPathParam reports whether a DSN-style connection string sets
// search_path. Keys match case-insensitively.
func hasSearchPathParam(connStr string) bool {
	return hasDSNKey(connStr, "search_path")
}

// hasSSLMode checks URL-style and DSN-style connection strings for sslmode.
func hasSSLMode(connStr string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for key := range u.Query() {
			if strings.EqualFold(key, "sslmode") {
				return true
			}
		}
	}
	return hasDSNKey(connStr, "sslmode")
}

func hasDSNKey(connStr, key string) bool {
	for _, part := range strings.Fields(connStr) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], key) {
			return true
		}
	}
	return false
}

// ValidateConnString checks that connStr is a PostgreSQL URI or DSN without
// an embedded password. Passwords belong in the environment, .pgpass or the
// OS keyring.
func ValidateConnString(connStr string) error {
	if strings.TrimSpace(connStr) == "" {
		return fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}

	if _, err := pq.NewConnector(connStr); err != nil {
		return fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}

	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		parsedURL, err := url.Parse(connStr)
		if err != nil {
			return fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
		}
		if _, isSet := parsedURL.User.Password(); isSet {
			return ErrEmbeddedCredentials
		}
		if parsedURL.Host == "" && parsedURL.User == nil && (parsedURL.Path == "" || parsedURL.Path == "/") {
			return fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
		}
		return nil
	}

	if hasDSNKey(connStr, "password") {
		return ErrEmbeddedCredentials
	}
	return nil
}

// Open connects, creates the schema and applies pending migrations.
func (s *PostgresStore) Open(ctx context.Context) error {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(s.connStr) {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(s.schema)); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.db = db

	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	if _, err := migration.NewRunner(s.db, subFS).ApplyMigrations(func(msg string) {
		logger.Info(msg)
	}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func serverID(id models.ID) (int64, error) {
	v, ok := id.Value()
	if !ok {
		return 0, fmt.Errorf("id %s has not been assigned by the remote store", id)
	}
	return v, nil
}

func (s *PostgresStore) CreateDog(ctx context.Context, name string) (models.ID, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, "INSERT INTO dogs (name) VALUES ($1) RETURNING id", name).Scan(&id); err != nil {
		return models.ID{}, fmt.Errorf("failed to create dog: %w", err)
	}
	return models.Assigned(id), nil
}

func (s *PostgresStore) DeleteDog(ctx context.Context, dogID models.ID) error {
	id, err := serverID(dogID)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM dogs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete dog: %w", err)
	}
	return expectOne(res, "dog", dogID)
}

func (s *PostgresStore) FetchDogs(ctx context.Context) ([]*models.Dog, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM dogs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dogs: %w", err)
	}
	defer rows.Close()

	var dogs []*models.Dog
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan dog: %w", err)
		}
		dogs = append(dogs, &models.Dog{ID: models.Assigned(id), Name: name, Reminders: models.NewReminderCollection()})
	}
	return dogs, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, dogID models.ID, r *models.Reminder) (models.ID, error) {
	dog, err := serverID(dogID)
	if err != nil {
		return models.ID{}, err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return models.ID{}, fmt.Errorf("failed to encode reminder: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO reminders (dog_id, action, mode, is_enabled, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		dog, string(r.Action), r.Mode().String(), r.Enabled, string(payload),
	).Scan(&id)
	if err != nil {
		return models.ID{}, fmt.Errorf("failed to create reminder: %w", err)
	}
	return models.Assigned(id), nil
}

func (s *PostgresStore) Update(ctx context.Context, dogID models.ID, r *models.Reminder) error {
	dog, err := serverID(dogID)
	if err != nil {
		return err
	}
	id, err := serverID(r.ID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reminder: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE reminders
		SET action = $3, mode = $4, is_enabled = $5, payload = $6, updated_at = now()
		WHERE id = $1 AND dog_id = $2`,
		id, dog, string(r.Action), r.Mode().String(), r.Enabled, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	return expectOne(res, "reminder", r.ID)
}

func (s *PostgresStore) Delete(ctx context.Context, dogID, reminderID models.ID) error {
	dog, err := serverID(dogID)
	if err != nil {
		return err
	}
	id, err := serverID(reminderID)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM reminders WHERE id = $1 AND dog_id = $2", id, dog)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return expectOne(res, "reminder", reminderID)
}

func (s *PostgresStore) FetchAll(ctx context.Context, dogID models.ID) ([]*models.Reminder, error) {
	dog, err := serverID(dogID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id, payload FROM reminders WHERE dog_id = $1 ORDER BY id", dog)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reminders: %w", err)
	}
	defer rows.Close()

	var out []*models.Reminder
	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		var r models.Reminder
		if err := json.Unmarshal(payload, &r); err != nil {
			logger.Warn("Skipping undecodable remote reminder", "dog", dogID, "reminder", id, "error", err)
			continue
		}
		r.ID = models.Assigned(id)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func expectOne(res sql.Result, kind string, id models.ID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return perrors.NotFound(kind, id)
	}
	return nil
}
