package data

// AuditEventType defines audit event type constants.
// These constants are used for the proxy_events journal.
type AuditEventType string

const (
	// AuditEventProxyAdded is logged when a proxy joins the pool
	AuditEventProxyAdded AuditEventType = "PROXY_ADDED"

	// AuditEventProxyRemoved is logged when a proxy is removed
	AuditEventProxyRemoved AuditEventType = "PROXY_REMOVED"

	// AuditEventCooldownStarted is logged when live failures start a cooldown
	AuditEventCooldownStarted AuditEventType = "COOLDOWN_STARTED"

	// AuditEventProxyBanned is logged when health probes ban a proxy
	AuditEventProxyBanned AuditEventType = "PROXY_BANNED"

	// AuditEventBanReset is logged when an operator clears a ban
	AuditEventBanReset AuditEventType = "BAN_RESET"
)

// String returns the string representation of AuditEventType
func (e AuditEventType) String() string {
	return string(e)
}
