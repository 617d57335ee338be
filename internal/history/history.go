// Package history persists completed overlay sessions to a SQLite database,
// so `restmode history` can list them after the fact.
package history

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/restmode/restmode/internal/notifier"
	"github.com/restmode/restmode/internal/overlay"
	"github.com/restmode/restmode/internal/watcher"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultDataDir = ".restmode"
	defaultDBName  = "history.db"
)

// SessionRecord is one completed overlay session.
type SessionRecord struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"not null;index"`
	Trigger   string    `gorm:"not null"`
	Reason    string    `gorm:"not null"`
	StartedAt time.Time `gorm:"not null;index"`
	EndedAt   time.Time `gorm:"not null"`
	Duration  float64   `gorm:"not null"`
	Surfaces  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Store reads and writes session records.
type Store struct {
	db *gorm.DB
}

// DefaultPath returns the database location used when none is configured,
// creating its directory if needed.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	dataDir := filepath.Join(homeDir, defaultDataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create data directory")
	}
	return filepath.Join(dataDir, defaultDBName), nil
}

// Open opens the session database at path, creating and migrating it as
// needed. An empty path selects DefaultPath.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open session database")
	}
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate session database")
	}
	return &Store{db: db}, nil
}

// Add stores one session record.
func (s *Store) Add(record *SessionRecord) error {
	if err := s.db.Create(record).Error; err != nil {
		return errors.Wrap(err, "failed to store session")
	}
	return nil
}

// Recent returns up to limit sessions, most recently started first.
func (s *Store) Recent(limit int) ([]SessionRecord, error) {
	var records []SessionRecord
	err := s.db.
		Order("started_at DESC").
		Limit(limit).
		Find(&records).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query sessions")
	}
	return records, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get database connection")
	}
	return sqlDB.Close()
}

// UpdateSource is the part of the watcher the recorder consumes.
type UpdateSource interface {
	Subscribe() chan watcher.Update
	Unsubscribe(ch chan watcher.Update)
}

// Recorder stores a SessionRecord for every session end seen on the update
// stream. Store failures are logged and reported, but never stop it.
type Recorder struct {
	store    *Store
	source   UpdateSource
	notifier notifier.Notifier
	logger   *slog.Logger
}

func NewRecorder(store *Store, source UpdateSource, n notifier.Notifier, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		source:   source,
		notifier: n,
		logger:   logger,
	}
}

func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Debug("started")
	defer r.logger.Debug("stopped")

	ch := r.source.Subscribe()
	defer r.source.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			if update.Ended != nil {
				r.record(update.Ended)
			}
		}
	}
}

func (r *Recorder) record(ended *overlay.Ended) {
	record := SessionRecord{
		SessionID: ended.ID,
		Trigger:   string(ended.Trigger),
		Reason:    string(ended.Reason),
		StartedAt: ended.Started,
		EndedAt:   ended.EndedAt,
		Duration:  ended.Duration().Seconds(),
		Surfaces:  ended.Surfaces,
	}
	if err := r.store.Add(&record); err != nil {
		r.logger.Error("failed to store session", "err", err, "id", ended.ID)
		if r.notifier != nil {
			r.notifier.Notify(notifier.Event{
				Kind:      notifier.Error,
				SessionID: ended.ID,
				Message:   "failed to store session: " + err.Error(),
				Time:      time.Now(),
			})
		}
	}
}
