package app

import (
	"strconv"

	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/pkg/common"
	"go.uber.org/zap"
)

type settingSchema struct {
	Category    string
	Name        string
	Default     string
	Description string
}

// checkSettings seeds the settings table with defaults for keys that do not
// exist yet. Existing values are never overwritten.
func (a *Application) checkSettings() {
	schemas := []settingSchema{
		{"balancer", "enabled", strconv.FormatBool(a.appConfig.Balancer.Enabled),
			"Use weight-based random selection instead of priority order"},
		{"worker", "probe_interval", "60",
			"Seconds between background health probe sweeps"},
		{"worker", "qr_ttl_hours", "24",
			"Hours before unscanned QR material is cleared"},
	}

	for sortid, schema := range schemas {
		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", schema.Category, schema.Name).
			Count(&count)
		if count > 0 {
			continue
		}

		a.gormDB.Create(&domain.SysConfig{
			ID:     common.UUIDint64(),
			Sort:   sortid,
			Type:   schema.Category,
			Name:   schema.Name,
			Value:  schema.Default,
			Remark: schema.Description,
		})
		zap.L().Info("initialized config",
			zap.String("key", schema.Category+"."+schema.Name),
			zap.String("default", schema.Default))
	}
}
