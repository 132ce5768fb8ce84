package domain

import "time"

// Tenant is an account identified by an opaque token, owning zero or more
// messaging instances.
type Tenant struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	Token     string    `json:"token" gorm:"uniqueIndex;not null"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Tenant) TableName() string {
	return "wa_tenant"
}
