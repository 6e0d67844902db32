package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoredPolicy is one agent's checkpointed policy blob.
type StoredPolicy struct {
	AgentID   int
	Policy    []byte
	UpdatedAt time.Time
}

// PolicyRepository checkpoints policy blobs between runs. It satisfies the
// router's PolicyStore interface.
type PolicyRepository struct {
	db *pgxpool.Pool
}

// NewPolicyRepository creates a PolicyRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPolicyRepository(db *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// SavePolicy upserts the policy blob for agentID.
//
// Postcondition: A subsequent LoadPolicy for agentID returns policy.
func (r *PolicyRepository) SavePolicy(ctx context.Context, agentID int, policy []byte) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO policies (agent_id, policy, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (agent_id)
		 DO UPDATE SET policy = EXCLUDED.policy, updated_at = now()`,
		agentID, policy,
	)
	if err != nil {
		return fmt.Errorf("upserting policy for agent %d: %w", agentID, err)
	}
	return nil
}

// LoadPolicy retrieves the policy blob for agentID.
//
// Postcondition: Returns (policy, true, nil) when a row exists,
// (nil, false, nil) when none does, and a non-nil error on query failure.
func (r *PolicyRepository) LoadPolicy(ctx context.Context, agentID int) ([]byte, bool, error) {
	var policy []byte
	err := r.db.QueryRow(ctx,
		`SELECT policy FROM policies WHERE agent_id = $1`,
		agentID,
	).Scan(&policy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying policy for agent %d: %w", agentID, err)
	}
	return policy, true, nil
}

// List returns every stored policy, newest first.
func (r *PolicyRepository) List(ctx context.Context) ([]StoredPolicy, error) {
	rows, err := r.db.Query(ctx,
		`SELECT agent_id, policy, updated_at
		 FROM policies ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing policies: %w", err)
	}
	defer rows.Close()

	var policies []StoredPolicy
	for rows.Next() {
		var p StoredPolicy
		if err := rows.Scan(&p.AgentID, &p.Policy, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning policy row: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating policy rows: %w", err)
	}
	return policies, nil
}

// Delete removes the stored policy for agentID.
//
// Postcondition: Returns the number of rows removed (0 or 1).
func (r *PolicyRepository) Delete(ctx context.Context, agentID int) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM policies WHERE agent_id = $1`, agentID,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting policy for agent %d: %w", agentID, err)
	}
	return tag.RowsAffected(), nil
}
