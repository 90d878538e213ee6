package app

import (
	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/wafleet/config"
	"github.com/talkincode/wafleet/internal/hub"
	"github.com/talkincode/wafleet/internal/reconcile"
	"github.com/talkincode/wafleet/internal/registry"
	"github.com/talkincode/wafleet/internal/session"
	"github.com/talkincode/wafleet/internal/webhook"
	"github.com/talkincode/wafleet/internal/workerd"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SettingsProvider provides system settings access
type SettingsProvider interface {
	GetSettingsStringValue(category, key string) string
	GetSettingsInt64Value(category, key string) int64
	GetSettingsBoolValue(category, key string) bool
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ConfigManagerProvider provides configuration manager access
type ConfigManagerProvider interface {
	ConfigMgr() *ConfigManager
}

// ServiceProvider exposes the orchestration services to the api layer
type ServiceProvider interface {
	Bus() EventBus.Bus
	Hub() *hub.Hub
	WorkerClient() *workerd.Client
	Registry() *registry.Service
	SessionStore() *session.Store
	WebhookService() *webhook.Service
	Reconciler() *reconcile.Service
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SettingsProvider
	SchedulerProvider
	ConfigManagerProvider
	ServiceProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}
