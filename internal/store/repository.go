package store

import (
	"context"
	"errors"
	"time"

	"github.com/bjo163/wagate/internal/domain"
	"gorm.io/gorm"
)

// TenantRepository handles database operations for tenant accounts
type TenantRepository interface {
	// Upsert creates the tenant if the token is unknown and returns the
	// row. An existing tenant keeps its name unless a non-empty name is
	// given.
	Upsert(ctx context.Context, token, name string) (*domain.Tenant, error)

	// GetByToken retrieves a tenant by its opaque token
	GetByToken(ctx context.Context, token string) (*domain.Tenant, error)
}

// InstanceRef is an instance row joined with its owning tenant token,
// used when re-establishing sessions at startup.
type InstanceRef struct {
	Token      string `json:"token"`
	InstanceId string `json:"instance_id"`
	Status     string `json:"status"`
}

// InstanceRepository handles database operations for instance rows
type InstanceRepository interface {
	// Upsert inserts or overwrites the (tenant, instance) row with the
	// given status
	Upsert(ctx context.Context, tenantID int64, instanceID, status string) (*domain.Instance, error)

	// UpdateStatus sets the persisted status for the instance addressed
	// by tenant token + instance id. Updating a missing row is not an
	// error; durable state is a checkpoint, not the source of truth.
	UpdateStatus(ctx context.Context, token, instanceID, status string) error

	// Get retrieves the instance row for a tenant token + instance id
	Get(ctx context.Context, token, instanceID string) (*domain.Instance, error)

	// GetByStatus retrieves all instances with the given persisted
	// status, joined with their tenant token
	GetByStatus(ctx context.Context, status string) ([]InstanceRef, error)

	// GetLatestByStatus retrieves the most recently created instance of
	// a tenant in the given status
	GetLatestByStatus(ctx context.Context, token, status string) (*domain.Instance, error)

	// ListForTenant retrieves all instances of a tenant, newest first
	ListForTenant(ctx context.Context, token string) ([]*domain.Instance, error)
}

// MessageRepository handles database operations for the message log
type MessageRepository interface {
	// Insert records a sent message against the durable instance id
	Insert(ctx context.Context, instanceID int64, from, to, body, msgType string) error

	// ListForTenant retrieves messages for a tenant, newest first,
	// optionally filtered by instance id, with the total count
	ListForTenant(ctx context.Context, token, instanceID string, limit, offset int) ([]*domain.Message, int64, error)

	// DeleteOlderThan removes messages older than the given number of
	// days, returning the number of rows removed
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// GormTenantRepository is the GORM implementation of TenantRepository
type GormTenantRepository struct {
	db *gorm.DB
}

func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

func (r *GormTenantRepository) Upsert(ctx context.Context, token, name string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if name == "" {
			name = "Tenant"
		}
		tenant = domain.Tenant{Token: token, Name: name}
		if err := r.db.WithContext(ctx).Create(&tenant).Error; err != nil {
			return nil, err
		}
		return &tenant, nil
	}
	if err != nil {
		return nil, err
	}
	if name != "" && name != tenant.Name {
		if err := r.db.WithContext(ctx).Model(&domain.Tenant{}).
			Where("id = ?", tenant.ID).Update("name", name).Error; err != nil {
			return nil, err
		}
		tenant.Name = name
	}
	return &tenant, nil
}

func (r *GormTenantRepository) GetByToken(ctx context.Context, token string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GormInstanceRepository is the GORM implementation of InstanceRepository
type GormInstanceRepository struct {
	db *gorm.DB
}

func NewGormInstanceRepository(db *gorm.DB) *GormInstanceRepository {
	return &GormInstanceRepository{db: db}
}

func (r *GormInstanceRepository) Upsert(ctx context.Context, tenantID int64, instanceID, status string) (*domain.Instance, error) {
	var inst domain.Instance
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND instance_id = ?", tenantID, instanceID).
		First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		inst = domain.Instance{TenantId: tenantID, InstanceId: instanceID, Status: status}
		if err := r.db.WithContext(ctx).Create(&inst).Error; err != nil {
			return nil, err
		}
		return &inst, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&domain.Instance{}).
		Where("id = ?", inst.ID).Update("status", status).Error; err != nil {
		return nil, err
	}
	inst.Status = status
	return &inst, nil
}

func (r *GormInstanceRepository) UpdateStatus(ctx context.Context, token, instanceID, status string) error {
	return r.db.WithContext(ctx).Model(&domain.Instance{}).
		Where("instance_id = ? AND tenant_id = (?)",
			instanceID,
			r.db.Model(&domain.Tenant{}).Select("id").Where("token = ?", token)).
		Update("status", status).Error
}

func (r *GormInstanceRepository) Get(ctx context.Context, token, instanceID string) (*domain.Instance, error) {
	var inst domain.Instance
	err := r.db.WithContext(ctx).
		Joins("JOIN wa_tenant ON wa_tenant.id = wa_instance.tenant_id").
		Where("wa_tenant.token = ? AND wa_instance.instance_id = ?", token, instanceID).
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *GormInstanceRepository) GetByStatus(ctx context.Context, status string) ([]InstanceRef, error) {
	var refs []InstanceRef
	err := r.db.WithContext(ctx).Table("wa_instance").
		Select("wa_tenant.token AS token, wa_instance.instance_id AS instance_id, wa_instance.status AS status").
		Joins("JOIN wa_tenant ON wa_tenant.id = wa_instance.tenant_id").
		Where("wa_instance.status = ?", status).
		Scan(&refs).Error
	return refs, err
}

func (r *GormInstanceRepository) GetLatestByStatus(ctx context.Context, token, status string) (*domain.Instance, error) {
	var inst domain.Instance
	err := r.db.WithContext(ctx).
		Joins("JOIN wa_tenant ON wa_tenant.id = wa_instance.tenant_id").
		Where("wa_tenant.token = ? AND wa_instance.status = ?", token, status).
		Order("wa_instance.created_at DESC").
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *GormInstanceRepository) ListForTenant(ctx context.Context, token string) ([]*domain.Instance, error) {
	var insts []*domain.Instance
	err := r.db.WithContext(ctx).
		Joins("JOIN wa_tenant ON wa_tenant.id = wa_instance.tenant_id").
		Where("wa_tenant.token = ?", token).
		Order("wa_instance.created_at DESC").
		Find(&insts).Error
	return insts, err
}

// GormMessageRepository is the GORM implementation of MessageRepository
type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Insert(ctx context.Context, instanceID int64, from, to, body, msgType string) error {
	if msgType == "" {
		msgType = "text"
	}
	msg := &domain.Message{
		InstanceId: instanceID,
		FromUser:   from,
		ToUser:     to,
		Body:       body,
		MsgType:    msgType,
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *GormMessageRepository) ListForTenant(ctx context.Context, token, instanceID string, limit, offset int) ([]*domain.Message, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Model(&domain.Message{}).
		Joins("JOIN wa_instance ON wa_instance.id = wa_message.instance_id").
		Joins("JOIN wa_tenant ON wa_tenant.id = wa_instance.tenant_id").
		Where("wa_tenant.token = ?", token)
	if instanceID != "" {
		q = q.Where("wa_instance.instance_id = ?", instanceID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var msgs []*domain.Message
	err := q.Order("wa_message.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&msgs).Error
	return msgs, total, err
}

func (r *GormMessageRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.Message{})
	return res.RowsAffected, res.Error
}
