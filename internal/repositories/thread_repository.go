package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unibox/internal/models"
	"unibox/internal/utils"

	"github.com/google/uuid"
)

type MySQLThreadRepository struct {
	db *sql.DB
}

func NewMySQLThreadRepository(db *sql.DB) *MySQLThreadRepository {
	return &MySQLThreadRepository{db: db}
}

func (r *MySQLThreadRepository) Save(thread *models.Thread) error {
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	thread.CreatedAt = now
	if thread.LastMessageAt.IsZero() {
		thread.LastMessageAt = now
	}

	query := `
		INSERT INTO threads (id, tenant_id, contact_id, channel, owner_id, last_message_at, unread_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		thread.ID,
		thread.TenantID,
		thread.ContactID,
		thread.Channel,
		utils.NullStringPtr(thread.OwnerID),
		thread.LastMessageAt,
		thread.UnreadCount,
		thread.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return models.ErrStoreConflict
		}
		return fmt.Errorf("error saving thread: %v", err)
	}
	return nil
}

const threadColumns = `
	t.id, t.tenant_id, t.contact_id, t.channel, t.owner_id,
	t.last_message_at, t.unread_count, t.created_at,
	c.id, c.tenant_id, c.phone, c.name, c.wa_opt_in, c.created_at, c.updated_at`

func (r *MySQLThreadRepository) GetByID(tenantID, id string) (*models.Thread, error) {
	query := `
		SELECT ` + threadColumns + `
		FROM threads t
		JOIN contacts c ON c.id = t.contact_id
		WHERE t.tenant_id = ? AND t.id = ?`

	row := r.db.QueryRow(query, tenantID, id)
	thread, err := scanThread(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting thread: %v", err)
	}
	return thread, nil
}

func (r *MySQLThreadRepository) getByKey(tenantID, contactID, channel string) (*models.Thread, error) {
	query := `
		SELECT ` + threadColumns + `
		FROM threads t
		JOIN contacts c ON c.id = t.contact_id
		WHERE t.tenant_id = ? AND t.contact_id = ? AND t.channel = ?`

	row := r.db.QueryRow(query, tenantID, contactID, channel)
	thread, err := scanThread(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting thread: %v", err)
	}
	return thread, nil
}

func (r *MySQLThreadRepository) CreateIfNotExists(tenantID, contactID, channel string) (*models.Thread, error) {
	thread, err := r.getByKey(tenantID, contactID, channel)
	if err != nil {
		return nil, err
	}
	if thread != nil {
		return thread, nil
	}

	thread = &models.Thread{
		TenantID:  tenantID,
		ContactID: contactID,
		Channel:   channel,
	}
	err = r.Save(thread)
	if errors.Is(err, models.ErrStoreConflict) {
		// Concurrent first-send created it, use the winning row.
		return r.getByKey(tenantID, contactID, channel)
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(tenantID, thread.ID)
}

func (r *MySQLThreadRepository) List(tenantID string, filter models.ThreadFilter) ([]*models.Thread, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT ` + threadColumns + `
		FROM threads t
		JOIN contacts c ON c.id = t.contact_id
		WHERE t.tenant_id = ?`
	args := []interface{}{tenantID}

	if filter.Channel != "" {
		query += " AND t.channel = ?"
		args = append(args, filter.Channel)
	}
	if filter.Unread {
		query += " AND t.unread_count > 0"
	}
	if filter.Scheduled {
		query += ` AND EXISTS (
			SELECT 1 FROM messages m
			WHERE m.thread_id = t.id AND m.status = 'scheduled')`
	}
	if filter.Search != "" {
		query += ` AND (c.name LIKE ? OR c.phone LIKE ? OR EXISTS (
			SELECT 1 FROM messages m
			WHERE m.thread_id = t.id AND m.body LIKE ?))`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query += " ORDER BY t.last_message_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying threads: %v", err)
	}
	defer rows.Close()

	var threads []*models.Thread
	for rows.Next() {
		thread, err := scanThread(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("error scanning thread: %v", err)
		}
		threads = append(threads, thread)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %v", err)
	}
	return threads, nil
}

// Touch advances last_message_at without ever moving it backwards.
func (r *MySQLThreadRepository) Touch(tenantID, id string, at time.Time) error {
	query := `
		UPDATE threads
		SET last_message_at = GREATEST(last_message_at, ?)
		WHERE tenant_id = ? AND id = ?`

	_, err := r.db.Exec(query, at.UTC(), tenantID, id)
	if err != nil {
		return fmt.Errorf("error touching thread: %v", err)
	}
	return nil
}

// BumpInbound increments the unread counter and advances last_message_at in
// one statement so concurrent inbound bursts never lose a count.
func (r *MySQLThreadRepository) BumpInbound(tenantID, id string, at time.Time) error {
	query := `
		UPDATE threads
		SET unread_count = unread_count + 1,
		    last_message_at = GREATEST(last_message_at, ?)
		WHERE tenant_id = ? AND id = ?`

	_, err := r.db.Exec(query, at.UTC(), tenantID, id)
	if err != nil {
		return fmt.Errorf("error bumping thread: %v", err)
	}
	return nil
}

// MarkRead resets the unread counter. Existence is the caller's concern:
// an unchanged row and a missing row both affect zero rows here.
func (r *MySQLThreadRepository) MarkRead(tenantID, id string) error {
	query := `UPDATE threads SET unread_count = 0 WHERE tenant_id = ? AND id = ?`

	_, err := r.db.Exec(query, tenantID, id)
	if err != nil {
		return fmt.Errorf("error marking thread read: %v", err)
	}
	return nil
}

func scanThread(scan func(dest ...interface{}) error) (*models.Thread, error) {
	thread := &models.Thread{Contact: &models.Contact{}}
	var ownerID, contactName sql.NullString
	var waOptIn int

	err := scan(
		&thread.ID,
		&thread.TenantID,
		&thread.ContactID,
		&thread.Channel,
		&ownerID,
		&thread.LastMessageAt,
		&thread.UnreadCount,
		&thread.CreatedAt,
		&thread.Contact.ID,
		&thread.Contact.TenantID,
		&thread.Contact.Phone,
		&contactName,
		&waOptIn,
		&thread.Contact.CreatedAt,
		&thread.Contact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	thread.OwnerID = utils.StringPtr(ownerID)
	thread.Contact.Name = utils.StringPtr(contactName)
	thread.Contact.WaOptIn = waOptIn == 1
	return thread, nil
}
