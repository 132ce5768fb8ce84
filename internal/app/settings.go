package app

import (
	"github.com/bjo163/wagate/internal/domain"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// ConfigManager reads and writes sys_config rows. Values are stored as
// strings and cast on read.
type ConfigManager struct {
	app *Application
}

func NewConfigManager(a *Application) *ConfigManager {
	return &ConfigManager{app: a}
}

func (cm *ConfigManager) GetString(category, name string) string {
	var cfg domain.SysConfig
	err := cm.app.gormDB.
		Where("type = ? and name = ?", category, name).
		First(&cfg).Error
	if err != nil {
		return ""
	}
	return cfg.Value
}

func (cm *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(cm.GetString(category, name))
}

func (cm *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(cm.GetString(category, name))
}

// SetValue updates or creates a sys_config row
func (cm *ConfigManager) SetValue(category, name, value string) {
	var count int64
	cm.app.gormDB.Model(&domain.SysConfig{}).
		Where("type = ? and name = ?", category, name).
		Count(&count)
	if count == 0 {
		if err := cm.app.gormDB.Create(&domain.SysConfig{
			Type:  category,
			Name:  name,
			Value: value,
		}).Error; err != nil {
			zap.L().Error("create config failed",
				zap.String("category", category),
				zap.String("name", name),
				zap.Error(err))
		}
		return
	}
	if err := cm.app.gormDB.Model(&domain.SysConfig{}).
		Where("type = ? and name = ?", category, name).
		Update("value", value).Error; err != nil {
		zap.L().Error("update config failed",
			zap.String("category", category),
			zap.String("name", name),
			zap.Error(err))
	}
}
