package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"apotekpos/m/domain"
	"apotekpos/m/internal/opname"
)

// OpnameLineDetail is an opname line joined with its medicine for
// history display.
type OpnameLineDetail struct {
	domain.StockOpnameLine
	MedicineName string `db:"medicine_name" json:"medicine_name"`
	MedicineUnit string `db:"medicine_unit" json:"medicine_unit"`
}

// OpnameSessionDetail is a confirmed session with its lines.
type OpnameSessionDetail struct {
	domain.StockOpnameSession
	Lines []OpnameLineDetail `json:"lines"`
}

// ConfirmOpname persists a draft session and overwrites each counted
// medicine's stock with the physical count. Validation runs first so
// nothing is written when a discrepancy lacks a reason; the session row,
// its lines and every stock overwrite then commit as one unit. The
// overwrite is last-writer-wins: sales recorded between count start and
// confirmation are not reconciled.
func (s *Store) ConfirmOpname(ctx context.Context, session *opname.Session, notes string) (OpnameSessionDetail, error) {
	if session.Confirmed() {
		return OpnameSessionDetail{}, domain.ErrSessionConfirmed
	}
	if err := session.Validate(); err != nil {
		return OpnameSessionDetail{}, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return OpnameSessionDetail{}, fmt.Errorf("opname confirmation failed: begin: %w", err)
	}
	defer tx.Rollback()

	number, err := nextOpnameNumber(tx)
	if err != nil {
		return OpnameSessionDetail{}, fmt.Errorf("opname confirmation failed: number: %w", err)
	}

	var sessionID int64
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO stock_opname_sessions (session_number, notes, status) VALUES (?, ?, ?) RETURNING id`,
		number, notes, domain.OpnameConfirmed).Scan(&sessionID)
	if err != nil {
		return OpnameSessionDetail{}, fmt.Errorf("opname confirmation failed: insert session: %w", err)
	}

	for _, line := range session.Lines() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stock_opname_lines (session_id, medicine_id, system_stock, physical_stock, difference, reason)
             VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, line.MedicineID, line.SystemStock, line.PhysicalStock, line.Difference, line.Reason); err != nil {
			return OpnameSessionDetail{}, fmt.Errorf("opname confirmation failed: insert line: %w", err)
		}
		if err := setStock(ctx, tx, line.MedicineID, line.PhysicalStock); err != nil {
			return OpnameSessionDetail{}, fmt.Errorf("opname confirmation failed: stock overwrite: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return OpnameSessionDetail{}, fmt.Errorf("opname confirmation failed: commit: %w", err)
	}
	session.MarkConfirmed()

	return s.GetOpnameSession(ctx, sessionID)
}

// GetOpnameSession loads one confirmed session with its lines.
func (s *Store) GetOpnameSession(ctx context.Context, id int64) (OpnameSessionDetail, error) {
	sessions, err := s.listOpname(ctx, `WHERE s.id = ?`, []any{id})
	if err != nil {
		return OpnameSessionDetail{}, err
	}
	if len(sessions) == 0 {
		return OpnameSessionDetail{}, domain.ErrSessionNotFound
	}
	return sessions[0], nil
}

// ListOpnameSessions returns the reconciliation history, newest first.
func (s *Store) ListOpnameSessions(ctx context.Context) ([]OpnameSessionDetail, error) {
	return s.listOpname(ctx, "", nil)
}

func (s *Store) listOpname(ctx context.Context, where string, args []any) ([]OpnameSessionDetail, error) {
	query := `SELECT s.id, s.session_number, s.opname_date, s.notes, s.status, s.created_at
              FROM stock_opname_sessions s ` + where + `
              ORDER BY s.opname_date DESC, s.id DESC`

	sessions := []OpnameSessionDetail{}
	if err := s.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	ids := make([]int64, len(sessions))
	index := make(map[int64]*OpnameSessionDetail, len(sessions))
	for i := range sessions {
		sessions[i].Lines = []OpnameLineDetail{}
		ids[i] = sessions[i].ID
		index[sessions[i].ID] = &sessions[i]
	}

	linesQuery, linesArgs, err := sqlx.In(
		`SELECT l.id, l.session_id, l.medicine_id, l.system_stock, l.physical_stock, l.difference, l.reason,
                m.name AS medicine_name, m.unit AS medicine_unit
         FROM stock_opname_lines l
         JOIN medicines m ON m.id = l.medicine_id
         WHERE l.session_id IN (?)
         ORDER BY l.id`, ids)
	if err != nil {
		return nil, err
	}
	var lines []OpnameLineDetail
	if err := s.db.SelectContext(ctx, &lines, s.db.Rebind(linesQuery), linesArgs...); err != nil {
		return nil, err
	}
	for _, line := range lines {
		if sess, ok := index[line.SessionID]; ok {
			sess.Lines = append(sess.Lines, line)
		}
	}
	return sessions, nil
}

// nextOpnameNumber issues SO-<yyyymmdd>-<NNN> from a per-day counter.
func nextOpnameNumber(tx *sqlx.Tx) (string, error) {
	day := time.Now().Format("20060102")
	return nextSequence(tx, "SO-"+day, fmt.Sprintf("SO-%s-", day), 3)
}
