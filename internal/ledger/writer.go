package ledger

import (
	"context"
	"database/sql"
	"time"
)

// SystemActor is the reserved identity used for automated actions such as
// the expiry sweep, kept distinct from any real user so the ledger's actor
// column stays meaningful for audits.
const SystemActor = "system"

// Writer appends to the worker block ledger. The ledger is append-only:
// rows are never updated or deleted, and the worker's current block snapshot
// must always equal its last entry.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Entry struct {
	WorkerID  string
	Action    string // blocked | unblocked
	ActorID   string
	Reason    string
	BlockType string // temporary | permanent, empty for unblocks
	ExpiresAt string // RFC3339, empty unless temporary
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO worker_block_history(worker_id,action,action_by,reason,block_type,expires_at,created_at) VALUES (?,?,?,?,?,?,?)`,
		e.WorkerID, e.Action, e.ActorID, e.Reason, nullable(e.BlockType), nullable(e.ExpiresAt), ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
