package store

import (
	"context"
	"testing"

	"github.com/bjo163/wagate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	return db
}

func TestTenantUpsert_CreatesAndReuses(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, "tok-1", "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", first.Name)
	assert.NotZero(t, first.ID)

	again, err := repo.Upsert(ctx, "tok-1", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Acme", again.Name)

	var count int64
	db.Model(&domain.Tenant{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestTenantUpsert_RenamesExisting(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, "tok-1", "Old")
	require.NoError(t, err)

	renamed, err := repo.Upsert(ctx, "tok-1", "New")
	require.NoError(t, err)
	assert.Equal(t, "New", renamed.Name)

	got, err := repo.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
}

func TestInstanceUpsert_SameIDAcrossTenants(t *testing.T) {
	db := setupTestDB(t)
	tenants := NewGormTenantRepository(db)
	instances := NewGormInstanceRepository(db)
	ctx := context.Background()

	ta, err := tenants.Upsert(ctx, "tok-a", "A")
	require.NoError(t, err)
	tb, err := tenants.Upsert(ctx, "tok-b", "B")
	require.NoError(t, err)

	_, err = instances.Upsert(ctx, ta.ID, "instance_1", domain.InstanceConnected)
	require.NoError(t, err)
	_, err = instances.Upsert(ctx, tb.ID, "instance_1", domain.InstanceDisconnected)
	require.NoError(t, err)

	ia, err := instances.Get(ctx, "tok-a", "instance_1")
	require.NoError(t, err)
	ib, err := instances.Get(ctx, "tok-b", "instance_1")
	require.NoError(t, err)
	assert.NotEqual(t, ia.ID, ib.ID)
	assert.Equal(t, domain.InstanceConnected, ia.Status)
	assert.Equal(t, domain.InstanceDisconnected, ib.Status)
}

func TestInstanceUpsert_OverwritesStatus(t *testing.T) {
	db := setupTestDB(t)
	tenants := NewGormTenantRepository(db)
	instances := NewGormInstanceRepository(db)
	ctx := context.Background()

	tenant, err := tenants.Upsert(ctx, "tok-1", "")
	require.NoError(t, err)

	_, err = instances.Upsert(ctx, tenant.ID, "instance_1", domain.InstanceInitializing)
	require.NoError(t, err)
	inst, err := instances.Upsert(ctx, tenant.ID, "instance_1", domain.InstanceConnected)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceConnected, inst.Status)

	var count int64
	db.Model(&domain.Instance{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestInstanceUpdateStatus_ScopedByToken(t *testing.T) {
	db := setupTestDB(t)
	tenants := NewGormTenantRepository(db)
	instances := NewGormInstanceRepository(db)
	ctx := context.Background()

	ta, _ := tenants.Upsert(ctx, "tok-a", "")
	tb, _ := tenants.Upsert(ctx, "tok-b", "")
	_, err := instances.Upsert(ctx, ta.ID, "instance_1", domain.InstanceConnected)
	require.NoError(t, err)
	_, err = instances.Upsert(ctx, tb.ID, "instance_1", domain.InstanceConnected)
	require.NoError(t, err)

	require.NoError(t, instances.UpdateStatus(ctx, "tok-a", "instance_1", domain.InstanceDisconnected))

	ia, _ := instances.Get(ctx, "tok-a", "instance_1")
	ib, _ := instances.Get(ctx, "tok-b", "instance_1")
	assert.Equal(t, domain.InstanceDisconnected, ia.Status)
	assert.Equal(t, domain.InstanceConnected, ib.Status)
}

func TestInstanceUpdateStatus_MissingRowIsNoError(t *testing.T) {
	db := setupTestDB(t)
	instances := NewGormInstanceRepository(db)

	err := instances.UpdateStatus(context.Background(), "no-such", "instance_1", domain.InstanceDisconnected)
	assert.NoError(t, err)
}

func TestInstanceGetByStatus_JoinsToken(t *testing.T) {
	db := setupTestDB(t)
	tenants := NewGormTenantRepository(db)
	instances := NewGormInstanceRepository(db)
	ctx := context.Background()

	ta, _ := tenants.Upsert(ctx, "tok-a", "")
	tb, _ := tenants.Upsert(ctx, "tok-b", "")
	_, _ = instances.Upsert(ctx, ta.ID, "instance_1", domain.InstanceConnected)
	_, _ = instances.Upsert(ctx, ta.ID, "instance_2", domain.InstanceDisconnected)
	_, _ = instances.Upsert(ctx, tb.ID, "instance_3", domain.InstanceConnected)

	refs, err := instances.GetByStatus(ctx, domain.InstanceConnected)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	tokens := map[string]string{}
	for _, ref := range refs {
		tokens[ref.InstanceId] = ref.Token
	}
	assert.Equal(t, "tok-a", tokens["instance_1"])
	assert.Equal(t, "tok-b", tokens["instance_3"])
}

func TestMessageListForTenant_FiltersAndPages(t *testing.T) {
	db := setupTestDB(t)
	tenants := NewGormTenantRepository(db)
	instances := NewGormInstanceRepository(db)
	messages := NewGormMessageRepository(db)
	ctx := context.Background()

	tenant, _ := tenants.Upsert(ctx, "tok-1", "")
	inst1, _ := instances.Upsert(ctx, tenant.ID, "instance_1", domain.InstanceConnected)
	inst2, _ := instances.Upsert(ctx, tenant.ID, "instance_2", domain.InstanceConnected)

	for i := 0; i < 5; i++ {
		require.NoError(t, messages.Insert(ctx, inst1.ID, "system", "628123", "hello", "text"))
	}
	require.NoError(t, messages.Insert(ctx, inst2.ID, "system", "628999", "other", "text"))

	all, total, err := messages.ListForTenant(ctx, "tok-1", "", 50, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Len(t, all, 6)

	only1, total, err := messages.ListForTenant(ctx, "tok-1", "instance_1", 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, only1, 2)

	page2, _, err := messages.ListForTenant(ctx, "tok-1", "instance_1", 2, 4)
	require.NoError(t, err)
	assert.Len(t, page2, 1)

	none, total, err := messages.ListForTenant(ctx, "tok-other", "", 50, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, none)
}

func TestMessageInsert_DefaultsType(t *testing.T) {
	db := setupTestDB(t)
	tenants := NewGormTenantRepository(db)
	instances := NewGormInstanceRepository(db)
	messages := NewGormMessageRepository(db)
	ctx := context.Background()

	tenant, _ := tenants.Upsert(ctx, "tok-1", "")
	inst, _ := instances.Upsert(ctx, tenant.ID, "instance_1", domain.InstanceConnected)

	require.NoError(t, messages.Insert(ctx, inst.ID, "system", "628123", "hi", ""))

	msgs, _, err := messages.ListForTenant(ctx, "tok-1", "", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "text", msgs[0].MsgType)
	assert.Equal(t, "system", msgs[0].FromUser)
}

func TestMessageDeleteOlderThan_ZeroKeepsAll(t *testing.T) {
	db := setupTestDB(t)
	tenants := NewGormTenantRepository(db)
	instances := NewGormInstanceRepository(db)
	messages := NewGormMessageRepository(db)
	ctx := context.Background()

	tenant, _ := tenants.Upsert(ctx, "tok-1", "")
	inst, _ := instances.Upsert(ctx, tenant.ID, "instance_1", domain.InstanceConnected)
	require.NoError(t, messages.Insert(ctx, inst.ID, "system", "628123", "hi", "text"))

	removed, err := messages.DeleteOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, removed)

	removed, err = messages.DeleteOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 0, removed)
}

func TestInstanceGetLatestByStatus(t *testing.T) {
	db := setupTestDB(t)
	tenants := NewGormTenantRepository(db)
	instances := NewGormInstanceRepository(db)
	ctx := context.Background()

	tenant, _ := tenants.Upsert(ctx, "tok-1", "")
	_, err := instances.GetLatestByStatus(ctx, "tok-1", domain.InstanceConnected)
	assert.Error(t, err)

	_, _ = instances.Upsert(ctx, tenant.ID, "instance_1", domain.InstanceConnected)

	inst, err := instances.GetLatestByStatus(ctx, "tok-1", domain.InstanceConnected)
	require.NoError(t, err)
	assert.Equal(t, "instance_1", inst.InstanceId)
}
