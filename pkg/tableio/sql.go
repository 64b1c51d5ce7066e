package tableio

import (
	"context"
	"database/sql"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/calib-tools/calib/pkg/interpolation"
)

// DefaultQuery selects the points of a conventional calibration table.
const DefaultQuery = "SELECT reference, measured FROM calibration_points ORDER BY reference"

// OpenSQLite opens a sqlite database with the pure Go driver. Use ":memory:"
// for a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open sqlite database %s", path)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrapf(err, "failed to connect to sqlite database %s", path)
	}
	return db, nil
}

// LoadSQL runs query and reads one point per row. The query must return two
// numeric columns: the reference value first, then the measured value.
func LoadSQL(ctx context.Context, db *sql.DB, query string, args ...any) ([]interpolation.Point, error) {
	if query == "" {
		query = DefaultQuery
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to query calibration points")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logrus.Warnf("failed to close rows: %v", err)
		}
	}()

	var points []interpolation.Point
	for rows.Next() {
		var p interpolation.Point
		if err := rows.Scan(&p.Reference, &p.Measured); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to scan row %d", len(points)+1)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to iterate calibration points")
	}

	logrus.WithFields(logrus.Fields{
		"query":  query,
		"points": len(points),
	}).Debug("loaded calibration points from database")

	return points, nil
}
