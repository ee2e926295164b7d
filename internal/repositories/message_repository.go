package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
	"unibox/internal/models"
	"unibox/internal/utils"

	"github.com/google/uuid"
)

type MySQLMessageRepository struct {
	db *sql.DB
}

func NewMySQLMessageRepository(db *sql.DB) *MySQLMessageRepository {
	return &MySQLMessageRepository{db: db}
}

func (r *MySQLMessageRepository) Save(message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	media, err := marshalMedia(message.Media)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO messages (
			id, tenant_id, thread_id, author_id, channel, direction,
			body, media, status, provider_id, scheduled_at, sent_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		message.ID,
		message.TenantID,
		message.ThreadID,
		utils.NullStringPtr(message.AuthorID),
		message.Channel,
		message.Direction,
		message.Body,
		media,
		message.Status,
		utils.NullStringPtr(message.ProviderID),
		utils.NullTime(message.ScheduledAt),
		utils.NullTime(message.SentAt),
		message.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			// Same provider message id seen before within this tenant and
			// channel: an at-least-once redelivery.
			return models.ErrStoreConflict
		}
		return fmt.Errorf("error saving message: %v", err)
	}
	return nil
}

const messageColumns = `
	id, tenant_id, thread_id, author_id, channel, direction,
	body, media, status, provider_id, scheduled_at, sent_at, created_at`

func (r *MySQLMessageRepository) GetByID(tenantID, id string) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE tenant_id = ? AND id = ?`

	row := r.db.QueryRow(query, tenantID, id)
	message, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting message: %v", err)
	}
	return message, nil
}

// GetByProviderID resolves an already-ingested inbound message after a
// duplicate webhook delivery.
func (r *MySQLMessageRepository) GetByProviderID(tenantID, channel, direction, providerID string) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE tenant_id = ? AND channel = ? AND direction = ? AND provider_id = ?`

	row := r.db.QueryRow(query, tenantID, channel, direction, providerID)
	message, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting message: %v", err)
	}
	return message, nil
}

func (r *MySQLMessageRepository) GetByThread(tenantID, threadID string) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE tenant_id = ? AND thread_id = ?
		ORDER BY created_at ASC`

	rows, err := r.db.Query(query, tenantID, threadID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %v", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		message, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %v", err)
		}
		messages = append(messages, message)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %v", err)
	}
	return messages, nil
}

func (r *MySQLMessageRepository) ListDue(now time.Time, limit int) ([]*models.DueMessage, error) {
	query := `
		SELECT m.id, m.tenant_id, m.thread_id, m.author_id, m.channel, m.direction,
			m.body, m.media, m.status, m.provider_id, m.scheduled_at, m.sent_at, m.created_at,
			c.phone
		FROM messages m
		JOIN threads t ON t.id = m.thread_id
		JOIN contacts c ON c.id = t.contact_id
		WHERE m.status = 'scheduled' AND m.scheduled_at <= ?
		ORDER BY m.scheduled_at ASC
		LIMIT ?`

	rows, err := r.db.Query(query, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("error querying due messages: %v", err)
	}
	defer rows.Close()

	var due []*models.DueMessage
	for rows.Next() {
		d := &models.DueMessage{}
		var authorID, providerID, mediaRaw sql.NullString
		var scheduledAt, sentAt sql.NullTime

		err := rows.Scan(
			&d.ID, &d.TenantID, &d.ThreadID, &authorID, &d.Channel, &d.Direction,
			&d.Body, &mediaRaw, &d.Status, &providerID, &scheduledAt, &sentAt, &d.CreatedAt,
			&d.ContactPhone,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning due message: %v", err)
		}

		d.AuthorID = utils.StringPtr(authorID)
		d.ProviderID = utils.StringPtr(providerID)
		d.ScheduledAt = utils.TimePtr(scheduledAt)
		d.SentAt = utils.TimePtr(sentAt)
		if d.Media, err = unmarshalMedia(mediaRaw); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due messages: %v", err)
	}
	return due, nil
}

// Claim flips scheduled -> sending for a single row. The conditional WHERE
// is what makes concurrent drains safe: exactly one caller sees an affected
// row.
func (r *MySQLMessageRepository) Claim(id string) (bool, error) {
	query := `UPDATE messages SET status = 'sending' WHERE id = ? AND status = 'scheduled'`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return false, fmt.Errorf("error claiming message: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking affected rows: %v", err)
	}
	return affected == 1, nil
}

func (r *MySQLMessageRepository) MarkSent(id, providerID string, sentAt time.Time) error {
	query := `
		UPDATE messages
		SET status = 'sent', provider_id = ?, sent_at = ?
		WHERE id = ?`

	_, err := r.db.Exec(query, providerID, sentAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("error marking message sent: %v", err)
	}
	return nil
}

func (r *MySQLMessageRepository) MarkFailed(id string) error {
	query := `UPDATE messages SET status = 'failed' WHERE id = ?`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("error marking message failed: %v", err)
	}
	return nil
}

func scanMessage(scan func(dest ...interface{}) error) (*models.Message, error) {
	message := &models.Message{}
	var authorID, providerID, mediaRaw sql.NullString
	var scheduledAt, sentAt sql.NullTime

	err := scan(
		&message.ID,
		&message.TenantID,
		&message.ThreadID,
		&authorID,
		&message.Channel,
		&message.Direction,
		&message.Body,
		&mediaRaw,
		&message.Status,
		&providerID,
		&scheduledAt,
		&sentAt,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	message.AuthorID = utils.StringPtr(authorID)
	message.ProviderID = utils.StringPtr(providerID)
	message.ScheduledAt = utils.TimePtr(scheduledAt)
	message.SentAt = utils.TimePtr(sentAt)
	if message.Media, err = unmarshalMedia(mediaRaw); err != nil {
		return nil, err
	}
	return message, nil
}

func marshalMedia(media []models.Media) (sql.NullString, error) {
	if len(media) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(media)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("error encoding media: %v", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalMedia(raw sql.NullString) ([]models.Media, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var media []models.Media
	if err := json.Unmarshal([]byte(raw.String), &media); err != nil {
		return nil, fmt.Errorf("error decoding media: %v", err)
	}
	return media, nil
}
