package adminapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/talkincode/wafleet/internal/domain"
	"github.com/talkincode/wafleet/internal/hub"
	"github.com/talkincode/wafleet/internal/session"
	"github.com/talkincode/wafleet/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type devicePayload struct {
	OwnerID     int64  `json:"owner_id,string" validate:"required"`
	Name        string `json:"name" validate:"required,min=1,max=100"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=32"`
}

// registerDeviceRoutes registers device session routes
func registerDeviceRoutes() {
	webserver.ApiGET("/devices", listDevices)
	webserver.ApiGET("/devices/:id", getDevice)
	webserver.ApiPOST("/devices", createDevice)
	webserver.ApiPOST("/devices/:id/refresh", refreshDevice)
	webserver.ApiPOST("/devices/:id/disconnect", disconnectDevice)
	webserver.ApiGET("/devices/:id/qr", getDeviceQR)
	webserver.ApiGET("/devices/:id/qr.png", getDeviceQRImage)
}

func listDevices(c echo.Context) error {
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_OWNER", "Invalid or missing ownerId", nil)
	}
	page, pageSize := parsePagination(c)

	devices, total, err := GetAppContext(c).SessionStore().ListByOwner(c.Request().Context(), ownerID, page, pageSize)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query devices", err.Error())
	}

	return paged(c, devices, total, page, pageSize)
}

func getDevice(c echo.Context) error {
	device, errResp := loadDevice(c)
	if device == nil {
		return errResp
	}
	return ok(c, device)
}

// loadDevice resolves the :id + ownerId pair shared by the single-device
// routes. On failure it returns nil and the already-written error response.
func loadDevice(c echo.Context) (*domain.DeviceSession, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_OWNER", "Invalid or missing ownerId", nil)
	}

	device, err := GetAppContext(c).SessionStore().Get(c.Request().Context(), id, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(c, http.StatusNotFound, "DEVICE_NOT_FOUND", "Device session not found", nil)
	} else if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query device", err.Error())
	}
	return device, nil
}

func createDevice(c echo.Context) error {
	var payload devicePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse device parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	appCtx := GetAppContext(c)
	ctx := c.Request().Context()
	store := appCtx.SessionStore()

	name := strings.TrimSpace(payload.Name)
	if existing, err := store.GetByName(ctx, name); err == nil && existing != nil {
		return fail(c, http.StatusConflict, "DEVICE_EXISTS", "Device name already exists", nil)
	}

	device := &domain.DeviceSession{
		OwnerID:     payload.OwnerID,
		Name:        name,
		PhoneNumber: strings.TrimSpace(payload.PhoneNumber),
	}
	if err := store.Create(ctx, device); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create device", err.Error())
	}

	// Best effort initial connect. The session stays CONNECTING when no
	// worker is reachable; a later refresh or webhook moves it on.
	server, err := appCtx.Registry().SelectOptimal(ctx)
	if err != nil || server == nil {
		zap.L().Warn("device created without worker assignment",
			zap.Int64("device_id", device.ID))
		return ok(c, device)
	}

	workerCfg := appCtx.Config().Worker
	resp, err := appCtx.WorkerClient().Connect(ctx, server.BaseURL, workerCfg.ReconnectDuration(), device.Name, false)
	mut := session.Mutation{Status: device.Status, ServerID: &server.ID}
	if err != nil {
		zap.L().Warn("initial worker connect failed",
			zap.Int64("device_id", device.ID), zap.Error(err))
	} else if resp.QR != "" {
		mut.Status = domain.DeviceStatusAuthenticating
		mut.QRCode = &resp.QR
	}

	updated, _, err := store.Apply(ctx, device.ID, device.OwnerID, mut, notifyStatus(c))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update device", err.Error())
	}

	return ok(c, updated)
}

func refreshDevice(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}
	ownerID, err := parseOwnerID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_OWNER", "Invalid or missing ownerId", nil)
	}

	snap, err := GetAppContext(c).Reconciler().Refresh(c.Request().Context(), id, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "DEVICE_NOT_FOUND", "Device session not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "REFRESH_ERROR", "Failed to refresh device", err.Error())
	}

	return ok(c, snap)
}

func disconnectDevice(c echo.Context) error {
	device, errResp := loadDevice(c)
	if device == nil {
		return errResp
	}

	appCtx := GetAppContext(c)
	ctx := c.Request().Context()

	if device.ServerID != nil {
		server, err := appCtx.Registry().GetByID(ctx, *device.ServerID)
		if err == nil {
			workerCfg := appCtx.Config().Worker
			if err := appCtx.WorkerClient().Disconnect(ctx, server.BaseURL, workerCfg.StatusDuration(), device.Name); err != nil {
				zap.L().Warn("worker disconnect failed",
					zap.Int64("device_id", device.ID), zap.Error(err))
			}
		}
	}

	mut := session.Mutation{Status: domain.DeviceStatusDisconnected}
	updated, _, err := appCtx.SessionStore().Apply(ctx, device.ID, device.OwnerID, mut, notifyStatus(c))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update device", err.Error())
	}

	return ok(c, updated)
}

func getDeviceQR(c echo.Context) error {
	device, errResp := loadDevice(c)
	if device == nil {
		return errResp
	}
	if device.QRCode == "" {
		return fail(c, http.StatusNotFound, "QR_NOT_AVAILABLE", "No QR material held for this device", nil)
	}
	return ok(c, map[string]interface{}{
		"id":     device.ID,
		"status": device.Status,
		"qr":     device.QRCode,
	})
}

func getDeviceQRImage(c echo.Context) error {
	device, errResp := loadDevice(c)
	if device == nil {
		return errResp
	}
	if device.QRCode == "" {
		return fail(c, http.StatusNotFound, "QR_NOT_AVAILABLE", "No QR material held for this device", nil)
	}

	png, err := qrcode.Encode(device.QRCode, qrcode.Medium, 256)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "QR_ENCODE_ERROR", "Failed to render QR image", err.Error())
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// notifyStatus broadcasts a device status change to the owner's stream.
func notifyStatus(c echo.Context) func(*domain.DeviceSession, bool) {
	bus := GetAppContext(c).Bus()
	return func(updated *domain.DeviceSession, statusChanged bool) {
		if !statusChanged || bus == nil {
			return
		}
		bus.Publish(hub.TopicDeviceStatus, updated.OwnerID, updated)
	}
}
