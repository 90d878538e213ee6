package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/internal/registry"
	"github.com/talkincode/wafleet/internal/webserver"
	"gorm.io/gorm"
)

type serverPayload struct {
	Name         string `json:"name" validate:"required,min=1,max=100"`
	BaseURL      string `json:"base_url" validate:"required,url"`
	Environment  string `json:"environment" validate:"omitempty,oneof=production staging development"`
	Status       string `json:"status" validate:"omitempty,oneof=active inactive maintenance error"`
	MaxInstances int    `json:"max_instances" validate:"omitempty,min=1"`
	Priority     int    `json:"priority" validate:"omitempty,min=0"`
	Weight       int    `json:"weight" validate:"omitempty,min=0"`
	Timeout      int    `json:"timeout" validate:"omitempty,min=1,max=300"`
	RetryCount   int    `json:"retry_count" validate:"omitempty,min=0,max=10"`
}

type serverUpdatePayload struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=100"`
	BaseURL      *string `json:"base_url" validate:"omitempty,url"`
	Environment  *string `json:"environment" validate:"omitempty,oneof=production staging development"`
	Status       *string `json:"status" validate:"omitempty,oneof=active inactive maintenance error"`
	MaxInstances *int    `json:"max_instances" validate:"omitempty,min=1"`
	Priority     *int    `json:"priority" validate:"omitempty,min=0"`
	Weight       *int    `json:"weight" validate:"omitempty,min=0"`
	Timeout      *int    `json:"timeout" validate:"omitempty,min=1,max=300"`
	RetryCount   *int    `json:"retry_count" validate:"omitempty,min=0,max=10"`
}

// registerServerRoutes registers worker server CRUD and probe routes
func registerServerRoutes() {
	webserver.ApiGET("/servers", listServers)
	webserver.ApiGET("/servers/summary", summaryServers)
	webserver.ApiGET("/servers/optimal", selectOptimalServer)
	webserver.ApiGET("/servers/:id", getServer)
	webserver.ApiPOST("/servers", createServer)
	webserver.ApiPUT("/servers/:id", updateServer)
	webserver.ApiDELETE("/servers/:id", deleteServer)
	webserver.ApiPOST("/servers/:id/probe", probeServer)
	webserver.ApiPOST("/servers/probe", probeAllServers)
}

func listServers(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.WorkerServer{})
	if status := c.QueryParam("status"); status != "" {
		db = db.Where("status = ?", status)
	}
	if env := c.QueryParam("environment"); env != "" {
		db = db.Where("environment = ?", env)
	}
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		db = db.Where("LOWER(name) LIKE ? OR LOWER(base_url) LIKE ?",
			"%"+strings.ToLower(q)+"%", "%"+strings.ToLower(q)+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query servers", err.Error())
	}

	var servers []domain.WorkerServer
	if err := db.Order("id ASC").Offset((page-1)*pageSize).Limit(pageSize).Find(&servers).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query servers", err.Error())
	}

	return paged(c, servers, total, page, pageSize)
}

func getServer(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid server ID", nil)
	}

	var server domain.WorkerServer
	if err := GetDB(c).Where("id = ?", id).First(&server).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "SERVER_NOT_FOUND", "Worker server not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query server", err.Error())
	}

	return ok(c, server)
}

func createServer(c echo.Context) error {
	var payload serverPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse server parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	payload.Name = strings.TrimSpace(payload.Name)
	payload.BaseURL = strings.TrimRight(strings.TrimSpace(payload.BaseURL), "/")

	var exists int64
	GetDB(c).Model(&domain.WorkerServer{}).Where("name = ?", payload.Name).Count(&exists)
	if exists > 0 {
		return fail(c, http.StatusConflict, "SERVER_EXISTS", "Server name already exists", nil)
	}

	server := &domain.WorkerServer{
		Name:         payload.Name,
		BaseURL:      payload.BaseURL,
		Environment:  payload.Environment,
		Status:       payload.Status,
		MaxInstances: payload.MaxInstances,
		Priority:     payload.Priority,
		Weight:       payload.Weight,
		Timeout:      payload.Timeout,
		RetryCount:   payload.RetryCount,
	}

	if err := GetAppContext(c).Registry().Create(c.Request().Context(), server); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create server", err.Error())
	}

	return ok(c, server)
}

func updateServer(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid server ID", nil)
	}

	var payload serverUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse server parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if payload.Name != nil {
		updates["name"] = strings.TrimSpace(*payload.Name)
	}
	if payload.BaseURL != nil {
		updates["base_url"] = strings.TrimRight(strings.TrimSpace(*payload.BaseURL), "/")
	}
	if payload.Environment != nil {
		updates["environment"] = *payload.Environment
	}
	if payload.Status != nil {
		updates["status"] = *payload.Status
	}
	if payload.MaxInstances != nil {
		updates["max_instances"] = *payload.MaxInstances
	}
	if payload.Priority != nil {
		updates["priority"] = *payload.Priority
	}
	if payload.Weight != nil {
		updates["weight"] = *payload.Weight
	}
	if payload.Timeout != nil {
		updates["timeout"] = *payload.Timeout
	}
	if payload.RetryCount != nil {
		updates["retry_count"] = *payload.RetryCount
	}

	server, err := GetAppContext(c).Registry().Update(c.Request().Context(), id, updates)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "SERVER_NOT_FOUND", "Worker server not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update server", err.Error())
	}

	return ok(c, server)
}

func deleteServer(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid server ID", nil)
	}

	err = GetAppContext(c).Registry().Remove(c.Request().Context(), id)
	if errors.Is(err, registry.ErrServerInUse) {
		return fail(c, http.StatusConflict, "SERVER_IN_USE", "Server still has device sessions assigned", nil)
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "SERVER_NOT_FOUND", "Worker server not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete server", err.Error())
	}

	return ok(c, map[string]interface{}{"id": id, "deleted": true})
}

func selectOptimalServer(c echo.Context) error {
	server, err := GetAppContext(c).Registry().SelectOptimal(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to select server", err.Error())
	}
	if server == nil {
		return fail(c, http.StatusServiceUnavailable, "NO_SERVER_AVAILABLE", "No active worker server available", nil)
	}
	return ok(c, server)
}

func probeServer(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid server ID", nil)
	}

	reg := GetAppContext(c).Registry()
	server, err := reg.GetByID(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "SERVER_NOT_FOUND", "Worker server not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query server", err.Error())
	}

	result := reg.ProbeHealth(c.Request().Context(), server)
	return ok(c, result)
}

func probeAllServers(c echo.Context) error {
	results, err := GetAppContext(c).Registry().ProbeAllHealth(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "PROBE_ERROR", "Failed to probe servers", err.Error())
	}
	return ok(c, results)
}

func summaryServers(c echo.Context) error {
	summary, err := GetAppContext(c).Registry().Summary(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to build summary", err.Error())
	}
	return ok(c, summary)
}
