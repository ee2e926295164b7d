package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type MySQLEventLogRepository struct {
	db *sql.DB
}

func NewMySQLEventLogRepository(db *sql.DB) *MySQLEventLogRepository {
	return &MySQLEventLogRepository{db: db}
}

// Append writes one audit row. Callers treat failures as non-fatal; the row
// is observability, not state.
func (r *MySQLEventLogRepository) Append(tenantID, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding event payload: %v", err)
	}

	query := `
		INSERT INTO event_log (tenant_id, type, payload, created_at)
		VALUES (?, ?, ?, ?)`

	_, err = r.db.Exec(query, tenantID, eventType, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error appending event: %v", err)
	}
	return nil
}
