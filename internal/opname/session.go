// Package opname holds the in-progress physical stock count. A Session
// is a caller-owned draft aggregate that accumulates counted lines and
// is handed to the store for confirmation; it never touches the
// database itself.
package opname

import (
	"apotekpos/m/domain"
)

// Line is one counted medicine within a draft session.
type Line struct {
	ID            int64
	MedicineID    int64
	MedicineName  string
	SystemStock   int64
	PhysicalStock int64
	Difference    int64
	Reason        string
}

// Summary is the display roll-up of a session.
type Summary struct {
	Total       int `json:"total"`
	Matched     int `json:"matched"`
	Discrepancy int `json:"discrepancy"`
}

// Session is a draft stock opname. Zero value is ready to use.
type Session struct {
	lines     []Line
	nextID    int64
	confirmed bool
}

// AddLine registers a medicine in the count. The physical stock defaults
// to the current system stock (difference zero) until the operator
// overwrites it.
func (s *Session) AddLine(medicine domain.Medicine) (*Line, error) {
	if s.confirmed {
		return nil, domain.ErrSessionConfirmed
	}
	for i := range s.lines {
		if s.lines[i].MedicineID == medicine.ID {
			return nil, &domain.ValidationError{Err: domain.ErrDuplicateMedicine, Details: medicine.Name}
		}
	}
	s.nextID++
	s.lines = append(s.lines, Line{
		ID:            s.nextID,
		MedicineID:    medicine.ID,
		MedicineName:  medicine.Name,
		SystemStock:   medicine.Stock,
		PhysicalStock: medicine.Stock,
	})
	return &s.lines[len(s.lines)-1], nil
}

// SetPhysicalStock records the counted quantity and recomputes the
// difference (physical - system).
func (s *Session) SetPhysicalStock(lineID, physical int64) error {
	if s.confirmed {
		return domain.ErrSessionConfirmed
	}
	if physical < 0 {
		return &domain.ValidationError{Err: domain.ErrInvalidStockValue, Details: "physical stock"}
	}
	line := s.find(lineID)
	if line == nil {
		return domain.ErrLineNotFound
	}
	line.PhysicalStock = physical
	line.Difference = physical - line.SystemStock
	return nil
}

// SetReason attaches a discrepancy reason from the fixed reason set.
func (s *Session) SetReason(lineID int64, reason string) error {
	if s.confirmed {
		return domain.ErrSessionConfirmed
	}
	if !domain.ValidReason(reason) {
		return &domain.ValidationError{Err: domain.ErrInvalidReason, Details: reason}
	}
	line := s.find(lineID)
	if line == nil {
		return domain.ErrLineNotFound
	}
	line.Reason = reason
	return nil
}

// RemoveLine drops a counted medicine from the draft.
func (s *Session) RemoveLine(lineID int64) error {
	if s.confirmed {
		return domain.ErrSessionConfirmed
	}
	for i := range s.lines {
		if s.lines[i].ID == lineID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return nil
		}
	}
	return domain.ErrLineNotFound
}

// Lines returns a copy of the current lines.
func (s *Session) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// Summarize counts matched and discrepancy lines for display.
func (s *Session) Summarize() Summary {
	sum := Summary{Total: len(s.lines)}
	for i := range s.lines {
		if s.lines[i].Difference == 0 {
			sum.Matched++
		} else {
			sum.Discrepancy++
		}
	}
	return sum
}

// Validate checks that every line with a non-zero difference carries a
// reason. It returns a MissingReasonError naming the offending
// medicines, and is called again by the store right before persisting.
func (s *Session) Validate() error {
	if len(s.lines) == 0 {
		return domain.ErrEmptySession
	}
	var missing []int64
	for i := range s.lines {
		if s.lines[i].Difference != 0 && s.lines[i].Reason == "" {
			missing = append(missing, s.lines[i].MedicineID)
		}
	}
	if len(missing) > 0 {
		return &domain.MissingReasonError{MedicineIDs: missing}
	}
	return nil
}

// Confirmed reports whether the session has been persisted.
func (s *Session) Confirmed() bool { return s.confirmed }

// MarkConfirmed freezes the session. Called by the store once the
// session and its stock overwrites have been committed.
func (s *Session) MarkConfirmed() { s.confirmed = true }

func (s *Session) find(lineID int64) *Line {
	for i := range s.lines {
		if s.lines[i].ID == lineID {
			return &s.lines[i]
		}
	}
	return nil
}
