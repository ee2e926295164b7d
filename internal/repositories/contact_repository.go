package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unibox/internal/models"
	"unibox/internal/utils"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a MySQL unique-constraint violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

type MySQLContactRepository struct {
	db *sql.DB
}

func NewMySQLContactRepository(db *sql.DB) *MySQLContactRepository {
	return &MySQLContactRepository{db: db}
}

func (r *MySQLContactRepository) Save(contact *models.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	query := `
		INSERT INTO contacts (id, tenant_id, phone, name, wa_opt_in, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		contact.ID,
		contact.TenantID,
		contact.Phone,
		utils.NullStringPtr(contact.Name),
		utils.BoolToInt(contact.WaOptIn),
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return models.ErrStoreConflict
		}
		return fmt.Errorf("error saving contact: %v", err)
	}
	return nil
}

func (r *MySQLContactRepository) GetByID(tenantID, id string) (*models.Contact, error) {
	return r.fetchOne(`
		SELECT id, tenant_id, phone, name, wa_opt_in, created_at, updated_at
		FROM contacts
		WHERE tenant_id = ? AND id = ?`, tenantID, id)
}

func (r *MySQLContactRepository) GetByPhone(tenantID, phone string) (*models.Contact, error) {
	return r.fetchOne(`
		SELECT id, tenant_id, phone, name, wa_opt_in, created_at, updated_at
		FROM contacts
		WHERE tenant_id = ? AND phone = ?`, tenantID, phone)
}

func (r *MySQLContactRepository) fetchOne(query string, args ...interface{}) (*models.Contact, error) {
	contact := &models.Contact{}
	var name sql.NullString
	var waOptIn int

	err := r.db.QueryRow(query, args...).Scan(
		&contact.ID,
		&contact.TenantID,
		&contact.Phone,
		&name,
		&waOptIn,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting contact: %v", err)
	}

	contact.Name = utils.StringPtr(name)
	contact.WaOptIn = waOptIn == 1
	return contact, nil
}

func (r *MySQLContactRepository) CreateIfNotExists(tenantID, phone string) (*models.Contact, error) {
	contact, err := r.GetByPhone(tenantID, phone)
	if err != nil {
		return nil, err
	}
	if contact != nil {
		return contact, nil
	}

	contact = &models.Contact{
		TenantID: tenantID,
		Phone:    phone,
	}
	err = r.Save(contact)
	if errors.Is(err, models.ErrStoreConflict) {
		// Lost the insert race, the winning row is the contact.
		return r.GetByPhone(tenantID, phone)
	}
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (r *MySQLContactRepository) UpdateName(tenantID, id, name string) error {
	query := `
		UPDATE contacts
		SET name = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`

	_, err := r.db.Exec(query, name, time.Now().UTC(), tenantID, id)
	if err != nil {
		return fmt.Errorf("error updating contact name: %v", err)
	}
	return nil
}
