package data

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ProxyLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

const auditBufferSize = 1000

// ProxyEvent is the GORM model for the proxy_events table
type ProxyEvent struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	Address   string    `gorm:"column:address;type:varchar(255);not null;index:idx_proxy_events_proxy,priority:1"`
	Port      int       `gorm:"column:port;not null;index:idx_proxy_events_proxy,priority:2"`
	EventType string    `gorm:"column:event_type;type:varchar(50);not null"`
	Details   string    `gorm:"column:details;type:json"` // JSON string
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName specifies the table name for GORM
func (ProxyEvent) TableName() string {
	return "proxy_events"
}

// AuditLoggerImpl writes pool events to MySQL from a background goroutine
type AuditLoggerImpl struct {
	db      *gorm.DB
	logChan chan *ProxyEvent
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	logger  *log.Helper
}

// NewAuditLogger creates a new audit logger with async channel. The cleanup function
// stops accepting events and waits until queued events are written.
func NewAuditLogger(db *gorm.DB, logger log.Logger) (*AuditLoggerImpl, func()) {
	al := &AuditLoggerImpl{
		db:      db,
		logChan: make(chan *ProxyEvent, auditBufferSize),
		done:    make(chan struct{}),
		logger:  log.NewHelper(logger),
	}

	go al.start()

	return al, al.Close
}

// start processes audit log events from channel
func (a *AuditLoggerImpl) start() {
	defer close(a.done)
	for event := range a.logChan {
		if err := a.db.WithContext(context.Background()).Create(event).Error; err != nil {
			a.logger.Errorw("failed to write audit log",
				"proxy", model.Identity{Address: event.Address, Port: event.Port}.String(),
				"event_type", event.EventType,
				"error", err)
		} else {
			a.logger.Debugw("audit log written",
				"proxy", model.Identity{Address: event.Address, Port: event.Port}.String(),
				"event_type", event.EventType)
		}
	}
}

// Close drains the queue. Events logged after Close are dropped.
func (a *AuditLoggerImpl) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.logChan)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AuditLoggerImpl) enqueue(id model.Identity, eventType AuditEventType, details map[string]interface{}) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		a.logger.Errorw("failed to marshal audit log details", "error", err)
		return
	}

	event := &ProxyEvent{
		Address:   id.Address,
		Port:      id.Port,
		EventType: eventType.String(),
		Details:   string(detailsJSON),
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.logger.Debugw("audit logger closed, dropping event", "event_type", event.EventType)
		return
	}

	// Send to channel (non-blocking)
	select {
	case a.logChan <- event:
	default:
		a.logger.Warnw("audit log channel full, dropping event",
			"proxy", id.String(),
			"event_type", event.EventType)
	}
}

// LogProxyAdded logs a proxy joining the pool
func (a *AuditLoggerImpl) LogProxyAdded(_ context.Context, rec *model.ProxyRecord) {
	a.enqueue(rec.ID(), AuditEventProxyAdded, map[string]interface{}{
		"protocol": string(rec.Protocol),
		"weight":   rec.Weight,
		"country":  rec.Country,
	})
}

// LogProxyRemoved logs a proxy leaving the pool
func (a *AuditLoggerImpl) LogProxyRemoved(_ context.Context, id model.Identity) {
	a.enqueue(id, AuditEventProxyRemoved, map[string]interface{}{})
}

// LogCooldownStarted logs live-traffic failures taking a proxy out of rotation
func (a *AuditLoggerImpl) LogCooldownStarted(_ context.Context, ev *model.CooldownEvent) {
	a.enqueue(ev.ID, AuditEventCooldownStarted, map[string]interface{}{
		"consecutive_failures": ev.ConsecutiveFailures,
		"cooldown_until":       ev.CooldownUntil.Format(time.RFC3339),
	})
}

// LogProxyBanned logs a ban by the health-check engine
func (a *AuditLoggerImpl) LogProxyBanned(_ context.Context, ev *model.BanEvent) {
	a.enqueue(ev.ID, AuditEventProxyBanned, map[string]interface{}{
		"consecutive_probe_failures": ev.ConsecutiveProbeFailures,
		"banned_at":                  ev.BannedAt.Format(time.RFC3339),
	})
}

// LogBanReset logs a manual ban reset
func (a *AuditLoggerImpl) LogBanReset(_ context.Context, id model.Identity) {
	a.enqueue(id, AuditEventBanReset, map[string]interface{}{})
}
