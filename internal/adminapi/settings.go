package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/internal/webserver"
	"github.com/talkincode/wafleet/pkg/common"
)

type settingPayload struct {
	Sort   int    `json:"sort"`
	Type   string `json:"type" validate:"required,min=1,max=50"`
	Name   string `json:"name" validate:"required,min=1,max=100"`
	Value  string `json:"value" validate:"omitempty,max=500"`
	Remark string `json:"remark" validate:"omitempty,max=500"`
}

// registerSettingsRoutes registers system settings routes
func registerSettingsRoutes() {
	webserver.ApiGET("/system/settings", listSettings)
	webserver.ApiPOST("/system/settings", saveSetting)
}

func listSettings(c echo.Context) error {
	db := GetDB(c).Model(&domain.SysConfig{})
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		db = db.Where("type = ?", category)
	}

	var settings []domain.SysConfig
	if err := db.Order("type ASC, sort ASC").Find(&settings).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query settings", err.Error())
	}

	return ok(c, settings)
}

// saveSetting upserts one (type, name) value and invalidates the settings
// cache so the change takes effect without a restart.
func saveSetting(c echo.Context) error {
	var payload settingPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse setting parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	db := GetDB(c)
	var existing domain.SysConfig
	err := db.Where("type = ? AND name = ?", payload.Type, payload.Name).First(&existing).Error
	if err == nil {
		updates := map[string]interface{}{
			"value":      payload.Value,
			"sort":       payload.Sort,
			"remark":     payload.Remark,
			"updated_at": time.Now(),
		}
		if err := db.Model(&domain.SysConfig{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update setting", err.Error())
		}
	} else {
		setting := domain.SysConfig{
			ID:        common.UUIDint64(),
			Sort:      payload.Sort,
			Type:      payload.Type,
			Name:      payload.Name,
			Value:     payload.Value,
			Remark:    payload.Remark,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := db.Create(&setting).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create setting", err.Error())
		}
	}

	GetAppContext(c).ConfigMgr().Invalidate()
	return ok(c, map[string]interface{}{"saved": true})
}
