package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sevenstream/internal/session"
	"sevenstream/internal/transcript"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `r.id, r.binary, r.args_json, r.data_type, r.stage, r.outcome,
    r.error_source, r.error_message, r.exit_code, r.info_json, r.entry_count,
    r.stdout_bytes, r.stderr_bytes, r.started_at, r.finished_at,
    t.run_id IS NOT NULL`

// Save stores run and, when enc is non-nil, its encoded transcript.
func (s *Store) Save(ctx context.Context, run *Run, enc *transcript.Encoded) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return errors.New("save run: id is required")
	}
	ctx = ensureContext(ctx)

	argsJSON, err := json.Marshal(run.Args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	info := run.Info
	if info == nil {
		info = []session.InfoPair{}
	}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal info: %w", err)
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin save tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (
                id, binary, args_json, data_type, stage, outcome,
                error_source, error_message, exit_code, info_json, entry_count,
                stdout_bytes, stderr_bytes, started_at, finished_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.Binary,
			string(argsJSON),
			string(run.DataType),
			string(run.Stage),
			string(run.Outcome),
			nullableString(run.ErrorSource),
			nullableString(run.ErrorMessage),
			run.ExitCode,
			string(infoJSON),
			run.EntryCount,
			run.StdoutBytes,
			run.StderrBytes,
			run.StartedAt.UTC().Format(timeLayout),
			run.FinishedAt.UTC().Format(timeLayout),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if enc != nil {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO transcripts (run_id, compression, raw_size, digest, payload) VALUES (?, ?, ?, ?, ?)`,
				run.ID,
				int(enc.Compression),
				enc.RawSize,
				enc.Digest[:],
				enc.Payload,
			); err != nil {
				return fmt.Errorf("insert transcript: %w", err)
			}
		}
		return tx.Commit()
	})
}

// Get returns the run whose id equals or starts with id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	runID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+runColumns+` FROM runs r LEFT JOIN transcripts t ON t.run_id = r.id WHERE r.id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// List returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r LEFT JOIN transcripts t ON t.run_id = r.id
        ORDER BY r.started_at DESC, r.id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Transcript loads and verifies the stored transcript of a run.
func (s *Store) Transcript(ctx context.Context, id string) (*transcript.Transcript, error) {
	runID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}
	var (
		enc         transcript.Encoded
		compression int
		digest      []byte
	)
	err = s.db.QueryRowContext(ensureContext(ctx),
		`SELECT compression, raw_size, digest, payload FROM transcripts WHERE run_id = ?`,
		runID,
	).Scan(&compression, &enc.RawSize, &digest, &enc.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no transcript stored for %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if len(digest) != len(enc.Digest) {
		return nil, fmt.Errorf("load transcript %s: %w", runID, transcript.ErrDigestMismatch)
	}
	copy(enc.Digest[:], digest)
	enc.Compression = transcript.Compression(compression)
	t, err := transcript.Decode(enc)
	if err != nil {
		return nil, fmt.Errorf("load transcript %s: %w", runID, err)
	}
	return t, nil
}

// Prune deletes runs that started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM runs WHERE started_at < ?`,
			cutoff.UTC().Format(timeLayout),
		)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}

func (s *Store) resolveID(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id FROM runs WHERE id = ? OR substr(id, 1, ?) = ? ORDER BY id LIMIT 2`,
		id, len(id), id,
	)
	if err != nil {
		return "", fmt.Errorf("resolve run id: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var match string
		if err := rows.Scan(&match); err != nil {
			return "", fmt.Errorf("resolve run id: %w", err)
		}
		if match == id {
			return match, nil
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve run id: %w", err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run          Run
		argsJSON     string
		infoJSON     string
		dataType     string
		stage        string
		outcome      string
		errorSource  sql.NullString
		errorMessage sql.NullString
		startedAt    string
		finishedAt   string
	)
	if err := row.Scan(
		&run.ID,
		&run.Binary,
		&argsJSON,
		&dataType,
		&stage,
		&outcome,
		&errorSource,
		&errorMessage,
		&run.ExitCode,
		&infoJSON,
		&run.EntryCount,
		&run.StdoutBytes,
		&run.StderrBytes,
		&startedAt,
		&finishedAt,
		&run.HasTranscript,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.DataType = session.DataType(dataType)
	run.Stage = session.Stage(stage)
	run.Outcome = Outcome(outcome)
	run.ErrorSource = errorSource.String
	run.ErrorMessage = errorMessage.String
	if err := json.Unmarshal([]byte(argsJSON), &run.Args); err != nil {
		return nil, fmt.Errorf("decode args of %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(infoJSON), &run.Info); err != nil {
		return nil, fmt.Errorf("decode info of %s: %w", run.ID, err)
	}
	var err error
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at of %s: %w", run.ID, err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at of %s: %w", run.ID, err)
	}
	return &run, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
