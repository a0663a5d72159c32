package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
)

// csvHeader is the expected header row of the legacy threats CSV.
var csvHeader = []string{"Timestamp", "Threat Type", "Source IP", "Destination IP", "Ports"}

// ImportCSV reads the legacy threats CSV and inserts each row into the
// threats view inside a single transaction, exactly once per the unique
// index (empty Destination IP and Ports cells are stored as empty strings,
// not NULL, so the index still matches them). Migrated rows carry meta_json = NULL since the legacy format has
// no metadata column. Returns the number of rows inserted (duplicates are
// not counted). Safe to re-run: it records completion in the stats view
// under csv_migrated and skips entirely if already run.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	if migrated, ok := s.GetStat(ctx, "csv_migrated"); ok && migrated == "1" {
		logging.Info().Msg("csv migration already completed, skipping")
		return 0, nil
	}

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("reading csv header: %w", err)
	}
	if !headerMatches(header) {
		return 0, fmt.Errorf("unexpected csv header: %v", header)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning csv import transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO threats (timestamp, kind, source_ip, destination_ip, ports, meta_json)
		VALUES (?, ?, ?, ?, ?, NULL)
		ON CONFLICT (timestamp, kind, source_ip, destination_ip, ports) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing csv import statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return inserted, fmt.Errorf("reading csv row: %w", err)
		}
		if len(record) < 5 {
			logging.Warn().Strs("row", record).Msg("skipping malformed csv row")
			continue
		}

		ts, err := normalizeTimestamp(record[0])
		if err != nil {
			logging.Warn().Str("timestamp", record[0]).Err(err).Msg("skipping csv row with unparseable timestamp")
			continue
		}

		res, err := stmt.ExecContext(ctx, ts, record[1], record[2], record[3], record[4])
		if err != nil {
			return inserted, fmt.Errorf("inserting csv row: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("committing csv import: %w", err)
	}

	if err := s.SetStat(ctx, "csv_migrated", "1"); err != nil {
		logging.Warn().Err(err).Msg("failed to record csv_migrated stat")
	}

	logging.Info().Int("rows_inserted", inserted).Msg("csv migration complete")
	return inserted, nil
}

func headerMatches(got []string) bool {
	if len(got) != len(csvHeader) {
		return false
	}
	for i, h := range csvHeader {
		if got[i] != h {
			return false
		}
	}
	return true
}
