package models

import "time"

type Contact struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Phone     string    `json:"phone"`
	Name      *string   `json:"name"`
	WaOptIn   bool      `json:"waOptIn"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ContactRepository interface {
	Save(contact *Contact) error
	GetByID(tenantID, id string) (*Contact, error)
	GetByPhone(tenantID, phone string) (*Contact, error)
	// CreateIfNotExists resolves (tenant, phone) to a contact, inserting a
	// row with a null name when none exists. Safe under concurrent callers:
	// a duplicate-key loss re-fetches the winning row. Existing contacts are
	// returned untouched, in particular the name is never overwritten.
	CreateIfNotExists(tenantID, phone string) (*Contact, error)
	UpdateName(tenantID, id, name string) error
}
