package app

import (
	"errors"
	"strconv"

	"github.com/bjo163/wagate/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type configSchema struct {
	category    string
	name        string
	defval      string
	description string
}

var configSchemas = []configSchema{
	{"gateway", "reconnect_delay_sec", "3", "Delay before re-dialing a dropped session"},
	{"gateway", "max_reconnects", "20", "Reconnect attempt ceiling, 0 retries forever"},
	{"gateway", "pair_timeout_sec", "30", "How long a pairing request waits for a QR"},
	{"gateway", "message_retention_days", "90", "Days of message history kept, 0 keeps all"},
}

// checkSettings seeds sys_config rows that do not exist yet. File and
// environment configuration override these at boot; the rows exist so
// operators can inspect and tune the live values.
func (a *Application) checkSettings() {
	for sortid, schema := range configSchemas {
		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", schema.category, schema.name).
			Count(&count)
		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				Sort:   sortid,
				Type:   schema.category,
				Name:   schema.name,
				Value:  schema.defval,
				Remark: schema.description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.category+"."+schema.name),
				zap.String("default", schema.defval))
		}
	}

	// reflect the booted config into the tunable rows when they differ
	// from factory defaults
	if a.appConfig.Gateway.ReconnectDelaySec > 0 {
		a.syncSetting("gateway", "reconnect_delay_sec", strconv.Itoa(a.appConfig.Gateway.ReconnectDelaySec))
	}
}

func (a *Application) syncSetting(category, name, value string) {
	a.gormDB.Model(&domain.SysConfig{}).
		Where("type = ? and name = ?", category, name).
		Update("value", value)
}

// checkDefaultTenant seeds the configured default tenant so a fresh
// deployment has a usable account token.
func (a *Application) checkDefaultTenant() {
	token := a.appConfig.Gateway.DefaultTenantToken
	if token == "" {
		return
	}

	var tenant domain.Tenant
	err := a.gormDB.Where("token = ?", token).First(&tenant).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		name := a.appConfig.Gateway.DefaultTenantName
		if name == "" {
			name = "Admin"
		}
		if cerr := a.gormDB.Create(&domain.Tenant{Token: token, Name: name}).Error; cerr != nil {
			zap.L().Error("failed to create default tenant", zap.Error(cerr))
		} else {
			zap.L().Info("initialized default tenant", zap.String("name", name))
		}
	case err != nil:
		zap.L().Error("failed to query default tenant", zap.Error(err))
	}
}
