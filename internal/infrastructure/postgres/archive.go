package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/domain/stock"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/jackc/pgx/v5"
)

// maxRowsPerStatement keeps a bulk insert under the 65535 bind parameter limit.
const maxRowsPerStatement = 1000

var insertColumns = []string{
	"record_id", "product_id", "operation_type", "amount", "before_stock", "after_stock",
	"user_id", "order_id", "scene", "status", "ext_info", "remark", "gmt_create", "gmt_modified",
}

const selectColumns = `record_id, product_id, operation_type, amount, before_stock, after_stock,
	user_id, order_id, scene, status, ext_info, reconcile_time, remark, gmt_create, gmt_modified`

// Archive is the durable store of deduction records.
type Archive struct {
	db   DB
	peer observability.PeerRecorder
}

var _ stock.Archive = (*Archive)(nil)

func NewArchive(db DB, tel observability.Observability) *Archive {
	return &Archive{db: db, peer: observability.NewPeerRecorder(tel, peerPostgres)}
}

// Insert stores one record. A record that is already archived is left untouched.
func (a *Archive) Insert(ctx context.Context, rec *stock.Record) (err error) {
	defer a.peer.Done("insert_record", time.Now(), &err)

	query, args := buildInsert([]*stock.Record{rec})
	if _, err = a.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: insert record %s: %w", rec.RecordID, err)
	}
	return nil
}

// InsertBatch stores recs in a single transaction and returns how many rows were new.
// Either every statement commits or none does.
func (a *Archive) InsertBatch(ctx context.Context, recs []*stock.Record) (_ int, err error) {
	if len(recs) == 0 {
		return 0, nil
	}
	defer a.peer.Done("insert_records", time.Now(), &err)

	inserted := 0
	err = inTx(ctx, a.db, func(tx pgx.Tx) error {
		for start := 0; start < len(recs); start += maxRowsPerStatement {
			end := min(start+maxRowsPerStatement, len(recs))
			query, args := buildInsert(recs[start:end])
			tag, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("postgres: insert records: %w", err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// MarkCompleted moves PENDING rows to COMPLETED. Rows in any other status are skipped.
func (a *Archive) MarkCompleted(ctx context.Context, recordIDs []string, at time.Time) (_ int, err error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	defer a.peer.Done("mark_completed", time.Now(), &err)

	return a.transition(ctx, `
		UPDATE stock_record
		SET status = $1, gmt_modified = $2, lock_version = lock_version + 1
		WHERE record_id = ANY($3) AND status = $4 AND deleted = 0
	`, stock.StatusCompleted, at, recordIDs, stock.StatusPending)
}

// MarkReconciled moves COMPLETED rows to RECONCILED and stamps the reconcile time.
// Unknown ids and rows that are already reconciled do not count.
func (a *Archive) MarkReconciled(ctx context.Context, recordIDs []string, at time.Time) (_ int, err error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	defer a.peer.Done("mark_reconciled", time.Now(), &err)

	return a.transition(ctx, `
		UPDATE stock_record
		SET status = $1, reconcile_time = $2, gmt_modified = $2, lock_version = lock_version + 1
		WHERE record_id = ANY($3) AND status = $4 AND deleted = 0
	`, stock.StatusReconciled, at, recordIDs, stock.StatusCompleted)
}

func (a *Archive) transition(ctx context.Context, query string, to stock.Status, at time.Time, ids []string, from stock.Status) (int, error) {
	var n int
	err := inTx(ctx, a.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, string(to), at.UTC(), ids, string(from))
		if err != nil {
			return fmt.Errorf("postgres: %s -> %s: %w", from, to, err)
		}
		n = int(tag.RowsAffected())
		return nil
	})
	return n, err
}

// PurgeReconciledBefore hard-deletes RECONCILED rows whose reconcile time is older than cutoff.
func (a *Archive) PurgeReconciledBefore(ctx context.Context, cutoff time.Time) (_ int, err error) {
	defer a.peer.Done("purge_reconciled", time.Now(), &err)

	tag, err := a.db.Exec(ctx, `
		DELETE FROM stock_record
		WHERE status = $1 AND reconcile_time < $2
	`, string(stock.StatusReconciled), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres: purge reconciled: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (a *Archive) ListByStatus(ctx context.Context, productID string, status stock.Status) (_ []*stock.Record, err error) {
	defer a.peer.Done("list_by_status", time.Now(), &err)

	return a.query(ctx, `
		SELECT `+selectColumns+`
		FROM stock_record
		WHERE product_id = $1 AND status = $2 AND deleted = 0
		ORDER BY gmt_create
	`, productID, string(status))
}

// ListByTimeRange returns records created in [from, to].
func (a *Archive) ListByTimeRange(ctx context.Context, productID string, from, to time.Time) (_ []*stock.Record, err error) {
	defer a.peer.Done("list_by_time_range", time.Now(), &err)

	return a.query(ctx, `
		SELECT `+selectColumns+`
		FROM stock_record
		WHERE product_id = $1 AND gmt_create BETWEEN $2 AND $3 AND deleted = 0
		ORDER BY gmt_create
	`, productID, from.UTC(), to.UTC())
}

func (a *Archive) query(ctx context.Context, query string, args ...any) ([]*stock.Record, error) {
	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query records: %w", err)
	}
	defer rows.Close()

	var out []*stock.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate records: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*stock.Record, error) {
	var (
		rec      stock.Record
		opType   string
		status   string
		modified time.Time
	)
	err := row.Scan(
		&rec.RecordID, &rec.ProductID, &opType, &rec.Amount, &rec.BeforeStock, &rec.AfterStock,
		&rec.UserID, &rec.OrderID, &rec.Scene, &status, &rec.ExtInfo, &rec.ReconcileTime, &rec.Remark,
		&rec.CreateTime, &modified,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan record: %w", err)
	}
	rec.OperationType = stock.OperationType(opType)
	rec.Status = stock.Status(status)
	rec.UpdateTime = &modified
	return &rec, nil
}

func buildInsert(recs []*stock.Record) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO stock_record (")
	b.WriteString(strings.Join(insertColumns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(recs)*len(insertColumns))
	for i, rec := range recs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range insertColumns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", len(args)+j+1)
		}
		b.WriteByte(')')

		modified := rec.CreateTime
		if rec.UpdateTime != nil {
			modified = *rec.UpdateTime
		}
		args = append(args,
			rec.RecordID, rec.ProductID, string(rec.OperationType), rec.Amount, rec.BeforeStock, rec.AfterStock,
			rec.UserID, rec.OrderID, rec.Scene, string(rec.Status), rec.ExtInfo, rec.Remark,
			rec.CreateTime, modified,
		)
	}
	b.WriteString(" ON CONFLICT (record_id) DO NOTHING")
	return b.String(), args
}
