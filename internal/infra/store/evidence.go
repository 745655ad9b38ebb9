// Package store persists correlated network incidents so they can be cited
// as dispute evidence after the raw logs are gone.
package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// incidentRecord is the stored form of a domain.Incident.
type incidentRecord struct {
	Fingerprint string `gorm:"primaryKey;size:64"`
	IncidentID  string
	Source      string `gorm:"index"`
	Device      string `gorm:"index"`
	Peer        string
	PeerAS      uint32
	StartedAt   time.Time `gorm:"index"`
	EndedAt     *time.Time
	Ongoing     bool
	DurationNs  int64
	Reason      string
	Prefixes    string // JSON array
	Events      string // JSON array
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (incidentRecord) TableName() string { return "incidents" }

// EvidenceStore is a gorm-backed port.EvidenceStore.
type EvidenceStore struct {
	db *gorm.DB
}

// Open connects to the sqlite database at path and migrates the schema.
func Open(path string) (*EvidenceStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&incidentRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &EvidenceStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *EvidenceStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database answers.
func (s *EvidenceStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveIncidents upserts incidents keyed by device, peer and start time, so
// re-ingesting an overlapping log updates an ongoing incident instead of
// duplicating it. It returns how many incidents were written.
func (s *EvidenceStore) SaveIncidents(ctx context.Context, source string, incidents []domain.Incident) (int, error) {
	if len(incidents) == 0 {
		return 0, nil
	}
	records := make([]incidentRecord, 0, len(incidents))
	for _, inc := range incidents {
		rec, err := toRecord(source, inc)
		if err != nil {
			return 0, err
		}
		records = append(records, rec)
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"incident_id", "source", "ended_at", "ongoing", "duration_ns", "reason", "prefixes", "events", "updated_at",
		}),
	}).Create(&records).Error
	if err != nil {
		return 0, fmt.Errorf("failed to save incidents: %w", err)
	}
	return len(records), nil
}

// ListIncidents returns stored incidents oldest first.
func (s *EvidenceStore) ListIncidents(ctx context.Context, filter domain.IncidentFilter) ([]domain.Incident, error) {
	q := s.db.WithContext(ctx).Model(&incidentRecord{}).Order("started_at ASC")
	if filter.Device != "" {
		q = q.Where("device = ?", filter.Device)
	}
	if !filter.Since.IsZero() {
		q = q.Where("started_at >= ?", filter.Since.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var records []incidentRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	out := make([]domain.Incident, 0, len(records))
	for _, rec := range records {
		inc, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, nil
}

// CloseOngoing ends the most recent ongoing incident for the recovery's
// device and peer that started at or before the recovery, appending the
// peer-up to its events.
func (s *EvidenceStore) CloseOngoing(ctx context.Context, recovery domain.NetworkEvent) (bool, error) {
	end := recovery.Timestamp.UTC()
	closed := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec incidentRecord
		res := tx.Where("device = ? AND peer = ? AND ongoing = ? AND started_at <= ?", recovery.Device, recovery.Peer, true, end).
			Order("started_at DESC").
			Limit(1).
			Find(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var events []domain.NetworkEvent
		if err := json.Unmarshal([]byte(rec.Events), &events); err != nil {
			return fmt.Errorf("decode events for %s: %w", rec.Fingerprint, err)
		}
		encoded, err := json.Marshal(append(events, recovery))
		if err != nil {
			return fmt.Errorf("encode events: %w", err)
		}

		if err := tx.Model(&incidentRecord{}).Where("fingerprint = ?", rec.Fingerprint).Updates(map[string]any{
			"ended_at":    end,
			"ongoing":     false,
			"duration_ns": int64(end.Sub(rec.StartedAt)),
			"events":      string(encoded),
		}).Error; err != nil {
			return err
		}
		closed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to close incident: %w", err)
	}
	return closed, nil
}

// PurgeBefore deletes closed incidents that started before cutoff.
func (s *EvidenceStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("started_at < ? AND ongoing = ?", cutoff.UTC(), false).
		Delete(&incidentRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge incidents: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// IncidentKey identifies an incident across ingests.
func IncidentKey(inc domain.Incident) string {
	sum := blake2b.Sum256([]byte(inc.Device + "\x00" + inc.Peer + "\x00" + inc.Start.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])
}

func toRecord(source string, inc domain.Incident) (incidentRecord, error) {
	prefixes, err := json.Marshal(inc.AffectedPrefixes)
	if err != nil {
		return incidentRecord{}, fmt.Errorf("encode prefixes: %w", err)
	}
	events, err := json.Marshal(inc.Events)
	if err != nil {
		return incidentRecord{}, fmt.Errorf("encode events: %w", err)
	}
	rec := incidentRecord{
		Fingerprint: IncidentKey(inc),
		IncidentID:  inc.ID,
		Source:      source,
		Device:      inc.Device,
		Peer:        inc.Peer,
		PeerAS:      inc.PeerAS,
		StartedAt:   inc.Start.UTC(),
		Ongoing:     inc.Ongoing,
		DurationNs:  int64(inc.Duration),
		Reason:      inc.Reason,
		Prefixes:    string(prefixes),
		Events:      string(events),
	}
	if inc.End != nil {
		end := inc.End.UTC()
		rec.EndedAt = &end
	}
	return rec, nil
}

func fromRecord(rec incidentRecord) (domain.Incident, error) {
	inc := domain.Incident{
		ID:       rec.IncidentID,
		Device:   rec.Device,
		Peer:     rec.Peer,
		PeerAS:   rec.PeerAS,
		Start:    rec.StartedAt.UTC(),
		Ongoing:  rec.Ongoing,
		Duration: time.Duration(rec.DurationNs),
		Reason:   rec.Reason,
	}
	if rec.EndedAt != nil {
		end := rec.EndedAt.UTC()
		inc.End = &end
	}
	if err := json.Unmarshal([]byte(rec.Prefixes), &inc.AffectedPrefixes); err != nil {
		return domain.Incident{}, fmt.Errorf("decode prefixes for %s: %w", rec.Fingerprint, err)
	}
	if err := json.Unmarshal([]byte(rec.Events), &inc.Events); err != nil {
		return domain.Incident{}, fmt.Errorf("decode events for %s: %w", rec.Fingerprint, err)
	}
	if inc.AffectedPrefixes == nil {
		inc.AffectedPrefixes = []string{}
	}
	return inc, nil
}
