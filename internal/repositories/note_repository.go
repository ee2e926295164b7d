package repositories

import (
	"database/sql"
	"fmt"
	"time"
	"unibox/internal/models"

	"github.com/google/uuid"
)

type MySQLNoteRepository struct {
	db *sql.DB
}

func NewMySQLNoteRepository(db *sql.DB) *MySQLNoteRepository {
	return &MySQLNoteRepository{db: db}
}

func (r *MySQLNoteRepository) Save(note *models.Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO notes (id, tenant_id, thread_id, author_id, body, visibility, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		note.ID,
		note.TenantID,
		note.ThreadID,
		note.AuthorID,
		note.Body,
		note.Visibility,
		note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving note: %v", err)
	}
	return nil
}

func (r *MySQLNoteRepository) GetByThread(tenantID, threadID string) ([]*models.Note, error) {
	query := `
		SELECT id, tenant_id, thread_id, author_id, body, visibility, created_at
		FROM notes
		WHERE tenant_id = ? AND thread_id = ?
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, tenantID, threadID)
	if err != nil {
		return nil, fmt.Errorf("error querying notes: %v", err)
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		note := &models.Note{}
		err := rows.Scan(
			&note.ID,
			&note.TenantID,
			&note.ThreadID,
			&note.AuthorID,
			&note.Body,
			&note.Visibility,
			&note.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning note: %v", err)
		}
		notes = append(notes, note)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %v", err)
	}
	return notes, nil
}
