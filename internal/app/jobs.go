package app

import (
	"time"

	"github.com/bjo163/wagate/internal/domain"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@daily", func() {
		a.purgeMessageHistory()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@every 60s", func() {
		a.logSessionHeartbeat()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}
}

// purgeMessageHistory trims the message log to the retention window
func (a *Application) purgeMessageHistory() {
	days := a.configManager.GetInt64("gateway", "message_retention_days")
	if days <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -int(days))
	res := a.gormDB.Where("created_at < ?", cutoff).Delete(&domain.Message{})
	if res.Error != nil {
		zap.L().Error("message retention purge failed", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		zap.L().Info("message retention purge",
			zap.Int64("removed", res.RowsAffected),
			zap.Int64("retention_days", days))
	}
}

// logSessionHeartbeat reports live vs persisted session counts
func (a *Application) logSessionHeartbeat() {
	var connected int64
	a.gormDB.Model(&domain.Instance{}).
		Where("status = ?", domain.InstanceConnected).
		Count(&connected)

	live := -1
	if a.liveSessions != nil {
		live = a.liveSessions()
	}
	zap.L().Info("session heartbeat",
		zap.Int("live", live),
		zap.Int64("persisted_connected", connected))
}
