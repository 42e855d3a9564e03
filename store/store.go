// Package store - Persists counting sessions and their crossings in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-linecount/counter"
	"github.com/nvr-ai/go-linecount/images"
	"github.com/nvr-ai/go-linecount/models"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Store is a crossing event database.
type Store struct {
	db  *sql.DB
	log logs.Log
}

// Session describes one counting run.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	Policy    string    `json:"policy"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Frames    uint64    `json:"frames"`
}

// Open opens or creates the database at path and brings its schema up to
// date.
//
// Arguments:
//   - path: The SQLite file.
//   - log: The logger.
//
// Returns:
//   - *Store: The open store.
//   - error: If the file cannot be opened or migrated.
func Open(path string, log logs.Log) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	// A single connection keeps SQLite writes serialized.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Infof("Event store %s ready", path)
	return &Store{db: db, log: log}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "load migrations")
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return errors.Wrap(err, "create sqlite driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return errors.Wrap(err, "create migrate instance")
	}
	// m is not closed: that would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate up")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession records the start of a counting run.
func (s *Store) StartSession(ctx context.Context, source string, policy counter.Policy) (Session, error) {
	session := Session{
		ID:        uuid.New(),
		Source:    source,
		Policy:    policy.String(),
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, source, policy, started_at) VALUES (?, ?, ?, ?)`,
		session.ID.String(), session.Source, session.Policy, session.StartedAt.UnixNano())
	if err != nil {
		return Session{}, errors.Wrap(err, "insert session")
	}
	return session, nil
}

// EndSession records the end of a run and its frame count.
func (s *Store) EndSession(ctx context.Context, id uuid.UUID, frames uint64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, frames = ? WHERE id = ?`,
		time.Now().UTC().UnixNano(), int64(frames), id.String())
	if err != nil {
		return errors.Wrap(err, "update session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrSessionNotFound, "%s", id)
	}
	return nil
}

// Session loads a session by id.
func (s *Store) Session(ctx context.Context, id uuid.UUID) (Session, error) {
	var (
		session   Session
		rawID     string
		startedAt int64
		endedAt   sql.NullInt64
		frames    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, policy, started_at, ended_at, frames FROM sessions WHERE id = ?`, id.String()).
		Scan(&rawID, &session.Source, &session.Policy, &startedAt, &endedAt, &frames)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, errors.Wrapf(ErrSessionNotFound, "%s", id)
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "query session")
	}

	session.ID, err = uuid.Parse(rawID)
	if err != nil {
		return Session{}, errors.Wrap(err, "parse session id")
	}
	session.StartedAt = time.Unix(0, startedAt).UTC()
	if endedAt.Valid {
		session.EndedAt = time.Unix(0, endedAt.Int64).UTC()
	}
	session.Frames = uint64(frames)
	return session, nil
}

// RecordCrossings stores the crossings of one frame in a single transaction.
func (s *Store) RecordCrossings(ctx context.Context, id uuid.UUID, crossings []counter.Crossing) error {
	if len(crossings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO crossings (session_id, frame, category, class, score, center_x, center_y)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare")
	}
	defer stmt.Close()

	for _, c := range crossings {
		if _, err := stmt.ExecContext(ctx, id.String(), int64(c.Frame), int(c.Category), c.Class,
			float64(c.Score), c.Center.X, c.Center.Y); err != nil {
			return errors.Wrap(err, "insert crossing")
		}
	}

	return errors.Wrap(tx.Commit(), "commit")
}

// Crossings returns the crossings of a session in frame order.
func (s *Store) Crossings(ctx context.Context, id uuid.UUID) ([]counter.Crossing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame, category, class, score, center_x, center_y
		 FROM crossings WHERE session_id = ? ORDER BY frame, id`, id.String())
	if err != nil {
		return nil, errors.Wrap(err, "query crossings")
	}
	defer rows.Close()

	var crossings []counter.Crossing
	for rows.Next() {
		var (
			c        counter.Crossing
			frame    int64
			category int
			score    float64
			x, y     int
		)
		if err := rows.Scan(&frame, &category, &c.Class, &score, &x, &y); err != nil {
			return nil, errors.Wrap(err, "scan crossing")
		}
		c.Frame = uint64(frame)
		c.Category = models.VehicleCategory(category)
		c.Score = float32(score)
		c.Center = images.Point{X: x, Y: y}
		crossings = append(crossings, c)
	}
	return crossings, errors.Wrap(rows.Err(), "iterate crossings")
}

// Totals sums the crossings of a session per vehicle category.
func (s *Store) Totals(ctx context.Context, id uuid.UUID) (counter.Counts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM crossings WHERE session_id = ? GROUP BY category`, id.String())
	if err != nil {
		return counter.Counts{}, errors.Wrap(err, "query totals")
	}
	defer rows.Close()

	var totals counter.Counts
	for rows.Next() {
		var category int
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return counter.Counts{}, errors.Wrap(err, "scan totals")
		}
		if c := models.VehicleCategory(category); c.Valid() {
			totals[c] = uint64(n)
		}
	}
	return totals, errors.Wrap(rows.Err(), "iterate totals")
}
