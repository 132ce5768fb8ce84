package domain

import "time"

// Persisted instance statuses. The durable status is the last checkpoint;
// live status in the registry is authoritative while the process runs.
const (
	InstanceInitializing = "initializing"
	InstanceConnecting   = "connecting"
	InstanceQRGenerated  = "qr_generated"
	InstanceConnected    = "connected"
	InstanceDisconnected = "disconnected"
)

// Instance is one messaging session (credential set + connection) belonging
// to a tenant. The natural key is (tenant_id, instance_id).
type Instance struct {
	ID         int64     `json:"id,string" gorm:"primaryKey"`
	TenantId   int64     `json:"tenant_id,string" gorm:"index;uniqueIndex:uk_tenant_instance;not null"`
	InstanceId string    `json:"instance_id" gorm:"uniqueIndex:uk_tenant_instance;not null"`
	Status     string    `json:"status" gorm:"index;default:'initializing'"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Instance) TableName() string {
	return "wa_instance"
}
