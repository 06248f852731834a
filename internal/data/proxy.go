package data

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"ProxyLane/internal/conf"
	"ProxyLane/internal/model"
	"ProxyLane/pkg/crypto"
	pkgerrors "ProxyLane/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// snapshotColumns are the columns a snapshot writes. Identity and creation time are
// never touched.
var snapshotColumns = []string{
	"protocol", "username", "password_encrypted", "country", "weight",
	"total_requests", "successful_requests", "failed_requests", "consecutive_failures",
	"avg_response_time_ms", "last_used", "last_success", "is_cooling_down", "cooldown_until",
	"status", "latency_ms", "probe_successes", "probe_failures", "consecutive_probe_failures",
	"last_checked_at", "updated_at",
}

// ProxyProtocol represents the database ENUM type for protocol.
type ProxyProtocol string

// ProxyStatus represents the database ENUM type for status.
type ProxyStatus string

// Proxy is the GORM model for the proxies table.
type Proxy struct {
	Address           string        `gorm:"primaryKey;column:address;size:255"`
	Port              int           `gorm:"primaryKey;column:port;autoIncrement:false"`
	Protocol          ProxyProtocol `gorm:"column:protocol;type:enum('http','https','socks5');not null"`
	Username          string        `gorm:"column:username;size:255"`
	PasswordEncrypted string        `gorm:"column:password_encrypted;type:text"`
	Country           string        `gorm:"column:country;size:64"`
	Weight            int           `gorm:"column:weight;default:1;not null"`

	TotalRequests       int64      `gorm:"column:total_requests;default:0;not null"`
	SuccessfulRequests  int64      `gorm:"column:successful_requests;default:0;not null"`
	FailedRequests      int64      `gorm:"column:failed_requests;default:0;not null"`
	ConsecutiveFailures int32      `gorm:"column:consecutive_failures;default:0;not null"`
	AvgResponseTimeMs   float64    `gorm:"column:avg_response_time_ms;default:0;not null"`
	LastUsed            *time.Time `gorm:"column:last_used"`
	LastSuccess         *time.Time `gorm:"column:last_success"`
	IsCoolingDown       bool       `gorm:"column:is_cooling_down;default:false;not null"`
	CooldownUntil       *time.Time `gorm:"column:cooldown_until"`

	Status                   ProxyStatus `gorm:"column:status;type:enum('unchecked','checking','active','inactive','banned');default:'unchecked';not null"`
	LatencyMs                float64     `gorm:"column:latency_ms;default:0;not null"`
	ProbeSuccesses           int64       `gorm:"column:probe_successes;default:0;not null"`
	ProbeFailures            int64       `gorm:"column:probe_failures;default:0;not null"`
	ConsecutiveProbeFailures int32       `gorm:"column:consecutive_probe_failures;default:0;not null"`
	LastCheckedAt            *time.Time  `gorm:"column:last_checked_at"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Proxy) TableName() string {
	return "proxies"
}

// Scan implements sql.Scanner interface for ProxyProtocol.
func (p *ProxyProtocol) Scan(value interface{}) error {
	if value == nil {
		*p = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*p = ProxyProtocol(v)
	case string:
		*p = ProxyProtocol(v)
	default:
		return fmt.Errorf("cannot scan type %T into ProxyProtocol", value)
	}
	return nil
}

// Value implements driver.Valuer interface for ProxyProtocol.
func (p ProxyProtocol) Value() (driver.Value, error) {
	return string(p), nil
}

// Scan implements sql.Scanner interface for ProxyStatus.
func (s *ProxyStatus) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*s = ProxyStatus(v)
	case string:
		*s = ProxyStatus(v)
	default:
		return fmt.Errorf("cannot scan type %T into ProxyStatus", value)
	}
	return nil
}

// Value implements driver.Valuer interface for ProxyStatus.
func (s ProxyStatus) Value() (driver.Value, error) {
	return string(s), nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// proxyFromRecord converts a domain record into a row. The password is sealed with c.
func proxyFromRecord(rec *model.ProxyRecord, c *crypto.AESCrypto) (*Proxy, error) {
	sealed, err := c.Seal(rec.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to seal password for %s: %w", rec.ID(), err)
	}
	return &Proxy{
		Address:                  rec.Address,
		Port:                     rec.Port,
		Protocol:                 ProxyProtocol(rec.Protocol),
		Username:                 rec.Username,
		PasswordEncrypted:        sealed,
		Country:                  rec.Country,
		Weight:                   rec.Weight,
		TotalRequests:            rec.TotalRequests,
		SuccessfulRequests:       rec.SuccessfulRequests,
		FailedRequests:           rec.FailedRequests,
		ConsecutiveFailures:      int32(rec.ConsecutiveFailures),
		AvgResponseTimeMs:        rec.AvgResponseTimeMs,
		LastUsed:                 timePtr(rec.LastUsed),
		LastSuccess:              timePtr(rec.LastSuccess),
		IsCoolingDown:            rec.IsCoolingDown,
		CooldownUntil:            timePtr(rec.CooldownUntil),
		Status:                   ProxyStatus(rec.Status),
		LatencyMs:                rec.LatencyMs,
		ProbeSuccesses:           rec.ProbeSuccesses,
		ProbeFailures:            rec.ProbeFailures,
		ConsecutiveProbeFailures: int32(rec.ConsecutiveProbeFailures),
		LastCheckedAt:            timePtr(rec.LastCheckedAt),
		CreatedAt:                rec.CreatedAt,
	}, nil
}

// ToRecord converts a row back into a domain record, opening the sealed password.
func (p *Proxy) ToRecord(c *crypto.AESCrypto) (*model.ProxyRecord, error) {
	password, err := c.Open(p.PasswordEncrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to open password for %s:%d: %w", p.Address, p.Port, err)
	}
	return &model.ProxyRecord{
		Address:                  p.Address,
		Port:                     p.Port,
		Protocol:                 model.Protocol(p.Protocol),
		Username:                 p.Username,
		Password:                 password,
		Country:                  p.Country,
		Weight:                   p.Weight,
		TotalRequests:            p.TotalRequests,
		SuccessfulRequests:       p.SuccessfulRequests,
		FailedRequests:           p.FailedRequests,
		ConsecutiveFailures:      int(p.ConsecutiveFailures),
		AvgResponseTimeMs:        p.AvgResponseTimeMs,
		LastUsed:                 timeVal(p.LastUsed),
		LastSuccess:              timeVal(p.LastSuccess),
		IsCoolingDown:            p.IsCoolingDown,
		CooldownUntil:            timeVal(p.CooldownUntil),
		Status:                   model.HealthStatus(p.Status),
		LatencyMs:                p.LatencyMs,
		ProbeSuccesses:           p.ProbeSuccesses,
		ProbeFailures:            p.ProbeFailures,
		ConsecutiveProbeFailures: int(p.ConsecutiveProbeFailures),
		LastCheckedAt:            timeVal(p.LastCheckedAt),
		CreatedAt:                p.CreatedAt,
	}, nil
}

// ProxyRepo stores pool snapshots in MySQL.
type ProxyRepo struct {
	db     *gorm.DB
	cipher *crypto.AESCrypto
	logger *log.Helper
}

// NewCredentialCipher builds the password sealer from configuration. No key means passwords
// are stored unsealed.
func NewCredentialCipher(c *conf.Data) (*crypto.AESCrypto, error) {
	if c == nil || c.Database == nil {
		return nil, nil
	}
	return crypto.NewAESCryptoFromPassphrase(c.Database.EncryptionKey)
}

// NewProxyRepo creates a new proxy snapshot repository.
func NewProxyRepo(db *gorm.DB, cipher *crypto.AESCrypto, logger log.Logger) *ProxyRepo {
	return &ProxyRepo{
		db:     db,
		cipher: cipher,
		logger: log.NewHelper(logger),
	}
}

// List returns every stored proxy in creation order. Rows that cannot be decoded are
// skipped and logged.
func (r *ProxyRepo) List(ctx context.Context) ([]*model.ProxyRecord, error) {
	var rows []*Proxy
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		dbErr := pkgerrors.ClassifyDBError(err)
		r.logger.Errorw("failed to list proxies", "error", dbErr.Error())
		return nil, dbErr
	}

	records := make([]*model.ProxyRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.ToRecord(r.cipher)
		if err != nil {
			r.logger.Warnw("skipping undecodable proxy row",
				"address", row.Address,
				"port", row.Port,
				"error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Create inserts a new proxy. Returns classified database errors for better error handling
// in upper layers.
func (r *ProxyRepo) Create(ctx context.Context, rec *model.ProxyRecord) error {
	row, err := proxyFromRecord(rec, r.cipher)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		dbErr := pkgerrors.ClassifyDBError(err)

		switch dbErr.Type {
		case pkgerrors.ErrorTypeDuplicateKey:
			r.logger.Warnw("duplicate proxy",
				"proxy", rec.String(),
				"error", dbErr.Error())
		case pkgerrors.ErrorTypeConnectionError:
			r.logger.Errorw("database connection error",
				"error", dbErr.Error())
		default:
			r.logger.Errorw("failed to create proxy",
				"proxy", rec.String(),
				"error", dbErr.Error())
		}

		return dbErr
	}

	r.logger.Infow("proxy created", "proxy", rec.String(), "weight", rec.Weight)
	return nil
}

// Save writes the live state of a single existing proxy.
func (r *ProxyRepo) Save(ctx context.Context, rec *model.ProxyRecord) error {
	return r.SaveBatch(ctx, []*model.ProxyRecord{rec})
}

// SaveBatch writes the live state of existing proxies. Rows that no longer exist are
// skipped, never re-created.
func (r *ProxyRepo) SaveBatch(ctx context.Context, recs []*model.ProxyRecord) error {
	if len(recs) == 0 {
		return nil
	}

	var updated, missing int
	for _, rec := range recs {
		row, err := proxyFromRecord(rec, r.cipher)
		if err != nil {
			return err
		}

		result := r.db.WithContext(ctx).
			Model(&Proxy{}).
			Where("address = ? AND port = ?", row.Address, row.Port).
			Select(snapshotColumns).
			Updates(row)
		if result.Error != nil {
			dbErr := pkgerrors.ClassifyDBError(result.Error)
			r.logger.Errorw("failed to save proxy snapshot",
				"proxy", rec.String(),
				"saved", updated,
				"error_type", dbErr.Type.String(),
				"error", dbErr.Error())
			return dbErr
		}
		if result.RowsAffected == 0 {
			missing++
			continue
		}
		updated++
	}

	r.logger.Debugw("proxy snapshot saved", "count", len(recs), "updated", updated, "unchanged_or_missing", missing)
	return nil
}

// Delete removes a proxy and reports whether a row existed.
func (r *ProxyRepo) Delete(ctx context.Context, id model.Identity) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("address = ? AND port = ?", id.Address, id.Port).
		Delete(&Proxy{})
	if result.Error != nil {
		dbErr := pkgerrors.ClassifyDBError(result.Error)
		r.logger.Errorw("failed to delete proxy", "proxy", id.String(), "error", dbErr.Error())
		return false, dbErr
	}

	if result.RowsAffected == 0 {
		return false, nil
	}

	r.logger.Infow("proxy deleted", "proxy", id.String())
	return true, nil
}
