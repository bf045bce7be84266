package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session is the persisted record of one acquisition session.
type Session struct {
	ID              string     `json:"id"`
	Model           string     `json:"model"`
	Device          int        `json:"device"`
	MinFaceSize     int        `json:"min_face_size"`
	Ticks           int64      `json:"ticks"`
	SkippedTicks    int64      `json:"skipped_ticks"`
	FramesPublished int64      `json:"frames_published"`
	FacesDetected   int64      `json:"faces_detected"`
	ReadFailures    int64      `json:"read_failures"`
	DetectFailures  int64      `json:"detect_failures"`
	StartedAt       time.Time  `json:"started_at"`
	StoppedAt       *time.Time `json:"stopped_at,omitempty"`
}

// SessionRepository provides operations on the sessions table.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new, running session.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, model, device, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Model, sess.Device, sess.StartedAt,
	)
	return err
}

// Finish records the final counters of a session and marks it stopped.
func (r *SessionRepository) Finish(sess *Session) error {
	if sess.StoppedAt == nil {
		now := time.Now()
		sess.StoppedAt = &now
	}

	result, err := r.db.Exec(
		`UPDATE sessions SET
			min_face_size = ?, ticks = ?, skipped_ticks = ?, frames_published = ?,
			faces_detected = ?, read_failures = ?, detect_failures = ?, stopped_at = ?
		 WHERE id = ?`,
		sess.MinFaceSize, sess.Ticks, sess.SkippedTicks, sess.FramesPublished,
		sess.FacesDetected, sess.ReadFailures, sess.DetectFailures, *sess.StoppedAt,
		sess.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

const sessionColumns = `id, model, device, min_face_size, ticks, skipped_ticks, frames_published,
	faces_detected, read_failures, detect_failures, started_at, stopped_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var stoppedAt sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.Model, &sess.Device, &sess.MinFaceSize, &sess.Ticks, &sess.SkippedTicks,
		&sess.FramesPublished, &sess.FacesDetected, &sess.ReadFailures, &sess.DetectFailures,
		&sess.StartedAt, &stoppedAt,
	)
	if err != nil {
		return nil, err
	}

	if stoppedAt.Valid {
		t := stoppedAt.Time
		sess.StoppedAt = &t
	}
	return sess, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List retrieves the most recent sessions, newest first. A limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
