// Package catalog keeps a DuckDB ledger of export runs and the records each
// run emitted.
package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/logging"
	"github.com/layout-bridge/backend/internal/models"
)

var ErrRunNotFound = errors.New("export run not found")

// Run is one recorded export.
type Run struct {
	ID         string    `json:"id"`
	Layer      string    `json:"layer"`
	ThumbSize  int       `json:"thumbSize"`
	Exported   int       `json:"exported"`
	Skipped    int       `json:"skipped"`
	OutputPath string    `json:"outputPath"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Ledger stores export history. An empty path keeps it in memory.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	logger logrus.FieldLogger
}

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id          VARCHAR PRIMARY KEY,
		layer       VARCHAR NOT NULL,
		thumb_size  INTEGER NOT NULL,
		exported    INTEGER NOT NULL,
		skipped     INTEGER NOT NULL,
		output_path VARCHAR NOT NULL,
		created_at  TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS objects (
		run_id    VARCHAR NOT NULL,
		zorder    INTEGER NOT NULL,
		name      VARCHAR NOT NULL,
		x         DOUBLE NOT NULL,
		y         DOUBLE NOT NULL,
		width     DOUBLE NOT NULL,
		height    DOUBLE NOT NULL,
		rotation  DOUBLE NOT NULL,
		thumbnail VARCHAR NOT NULL
	);
`

// Open opens or creates the ledger database at path.
func Open(path string, logger logrus.FieldLogger) (*Ledger, error) {
	log := logging.WithComponent(logger, "catalog")

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				log.WithError(err).WithField("pragma", pragma).Warn("pragma failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.WithField("path", path).Debug("ledger opened")
	return &Ledger{db: db, logger: log}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordRun stores a finished export and its records, returning the run id.
func (l *Ledger) RecordRun(ctx context.Context, summary models.ExportSummary, batch models.ExportBatch) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := uuid.New().String()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, layer, thumb_size, exported, skipped, output_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, summary.Layer, summary.ThumbnailSize, summary.Exported, summary.Skipped,
		summary.InterchangePath, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	if len(batch.Objects) == 0 {
		return id, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "objects")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, o := range batch.Objects {
			if err := appender.AppendRow(
				id,
				int32(o.ZOrder),
				o.Name,
				o.X, o.Y, o.Width, o.Height, o.Rotation,
				o.Thumbnail,
			); err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return "", fmt.Errorf("appender error: %w", err)
	}

	l.logger.WithFields(logrus.Fields{"run": id, "objects": len(batch.Objects)}).Info("export run recorded")
	return id, nil
}

// Runs lists the most recent runs first. A non-positive limit lists all.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, layer, thumb_size, exported, skipped, output_path, created_at
		FROM runs ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Layer, &r.ThumbSize, &r.Exported, &r.Skipped, &r.OutputPath, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Objects returns the records of one run in zorder.
func (l *Ledger) Objects(ctx context.Context, runID string) ([]models.LayoutObject, error) {
	var exists int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT zorder, name, x, y, width, height, rotation, thumbnail
		 FROM objects WHERE run_id = ? ORDER BY zorder`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying objects: %w", err)
	}
	defer rows.Close()

	objects := []models.LayoutObject{}
	for rows.Next() {
		var o models.LayoutObject
		if err := rows.Scan(&o.ZOrder, &o.Name, &o.X, &o.Y, &o.Width, &o.Height, &o.Rotation, &o.Thumbnail); err != nil {
			return nil, fmt.Errorf("scanning object: %w", err)
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}
