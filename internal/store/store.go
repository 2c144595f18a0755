package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres driver.
type Store struct {
	Pool *pgxpool.Pool
}

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func (s *Store) CreateStage(ctx context.Context, rec *StageRecord, events []chip.Event) error {
	if err := rec.Key.Validate(); err != nil {
		return err
	}
	cfg, err := json.Marshal(rec.Config)
	if err != nil {
		return err
	}
	roster, err := json.Marshal(rec.Roster)
	if err != nil {
		return err
	}
	public, err := json.Marshal(rec.Public)
	if err != nil {
		return err
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	k := rec.Key
	if _, err := tx.Exec(ctx, `
		INSERT INTO chip_stages (experiment_id, cohort_id, stage_id, config, roster, public_data, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		k.ExperimentID, k.CohortID, k.StageID, cfg, roster, public, rec.Public.Version, rec.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	if err := insertEvents(ctx, tx, k, events); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetStage(ctx context.Context, key stage.Key) (*StageRecord, error) {
	var (
		cfg, roster, public []byte
		rec                 = StageRecord{Key: key}
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT config, roster, public_data, created_at, updated_at
		FROM chip_stages
		WHERE experiment_id = $1 AND cohort_id = $2 AND stage_id = $3`,
		key.ExperimentID, key.CohortID, key.StageID,
	).Scan(&cfg, &roster, &public, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if err := json.Unmarshal(cfg, &rec.Config); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(roster, &rec.Roster); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(public, &rec.Public); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CommitStage writes c only if the stored version still equals expected.
func (s *Store) CommitStage(ctx context.Context, key stage.Key, expected int64, c Commit) error {
	public, err := json.Marshal(c.Public)
	if err != nil {
		return err
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var current int64
	if err := tx.QueryRow(ctx, `
		SELECT version FROM chip_stages
		WHERE experiment_id = $1 AND cohort_id = $2 AND stage_id = $3
		FOR UPDATE`,
		key.ExperimentID, key.CohortID, key.StageID,
	).Scan(&current); err != nil {
		return mapNotFound(err)
	}
	if current != expected {
		return ErrVersionConflict
	}
	if _, err := tx.Exec(ctx, `
		UPDATE chip_stages SET public_data = $4, version = $5, updated_at = now()
		WHERE experiment_id = $1 AND cohort_id = $2 AND stage_id = $3`,
		key.ExperimentID, key.CohortID, key.StageID, public, c.Public.Version,
	); err != nil {
		return err
	}
	if err := insertEvents(ctx, tx, key, c.Events); err != nil {
		return err
	}
	if c.Command != nil {
		if err := insertCommand(ctx, tx, key, *c.Command); err != nil {
			if isUniqueViolation(err) {
				return ErrVersionConflict
			}
			return err
		}
	}
	return tx.Commit(ctx)
}

// SaveCommandResult records the outcome of a command that changed nothing.
func (s *Store) SaveCommandResult(ctx context.Context, key stage.Key, res CommandResult) error {
	err := insertCommand(ctx, s.Pool, key, res)
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

func (s *Store) GetCommandResult(ctx context.Context, key stage.Key, requestID string) (*CommandResult, error) {
	var (
		res  = CommandResult{RequestID: requestID}
		kind pgtype.Text
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT participant_id, op, success, error_kind, version, created_at
		FROM chip_commands
		WHERE experiment_id = $1 AND cohort_id = $2 AND stage_id = $3 AND request_id = $4`,
		key.ExperimentID, key.CohortID, key.StageID, requestID,
	).Scan(&res.ParticipantID, &res.Op, &res.Success, &kind, &res.Version, &res.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	res.ErrorKind = textVal(kind)
	return &res, nil
}

func (s *Store) ListEvents(ctx context.Context, key stage.Key, afterSeq int64, limit int) ([]chip.Event, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT payload FROM chip_stage_events
		WHERE experiment_id = $1 AND cohort_id = $2 AND stage_id = $3 AND seq > $4
		ORDER BY seq ASC
		LIMIT $5`,
		key.ExperimentID, key.CohortID, key.StageID, afterSeq, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []chip.Event{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev chip.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertCommand(ctx context.Context, db execer, key stage.Key, res CommandResult) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(ctx, `
		INSERT INTO chip_commands (experiment_id, cohort_id, stage_id, request_id, participant_id, op, success, error_kind, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		key.ExperimentID, key.CohortID, key.StageID, res.RequestID, res.ParticipantID, res.Op,
		res.Success, textParam(res.ErrorKind), res.Version, res.CreatedAt,
	)
	return err
}

func insertEvents(ctx context.Context, tx pgx.Tx, key stage.Key, events []chip.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO chip_stage_events (experiment_id, cohort_id, stage_id, seq, id, event_type, round, participant_id, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			key.ExperimentID, key.CohortID, key.StageID, ev.Seq, NewID(), string(ev.Type), ev.Round,
			textParam(ev.ParticipantID), payload, ev.Timestamp,
		)
	}
	return tx.SendBatch(ctx, batch).Close()
}
