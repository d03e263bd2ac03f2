package sqlstore

import (
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// keyedRecord is implemented by every record keyed by a string uuid.
type keyedRecord[R any] interface {
	*R
	recordID() string
	setRecordID(id string)
}

func recordHandlers[R any, P keyedRecord[R]]() repository.ModelHandlers[P] {
	return repository.ModelHandlers[P]{
		NewRecord: func() P {
			return P(new(R))
		},
		GetID: func(record P) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.recordID())
		},
		SetID: func(record P, id uuid.UUID) {
			if record == nil {
				return
			}
			record.setRecordID(id.String())
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record P) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.recordID())
		},
	}
}

func newRecordRepository[R any, P keyedRecord[R]](db *bun.DB, name string) (repository.Repository[P], error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[P](db, recordHandlers[R, P]())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid %s repository wiring: %w", name, err)
		}
	}
	return repo, nil
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

func ensureID(id string) string {
	if trimmed := strings.TrimSpace(id); trimmed != "" {
		return trimmed
	}
	return uuid.NewString()
}

func (r *userRecord) recordID() string                  { return r.ID }
func (r *userRecord) setRecordID(id string)             { r.ID = id }
func (r *identityRecord) recordID() string              { return r.ID }
func (r *identityRecord) setRecordID(id string)         { r.ID = id }
func (r *applicationRecord) recordID() string           { return r.ID }
func (r *applicationRecord) setRecordID(id string)      { r.ID = id }
func (r *voteRecord) recordID() string                  { return r.ID }
func (r *voteRecord) setRecordID(id string)             { r.ID = id }
func (r *practiceSessionRecord) recordID() string       { return r.ID }
func (r *practiceSessionRecord) setRecordID(id string)  { r.ID = id }
func (r *projectRecord) recordID() string               { return r.ID }
func (r *projectRecord) setRecordID(id string)          { r.ID = id }
func (r *treasuryRecord) recordID() string              { return r.ID }
func (r *treasuryRecord) setRecordID(id string)         { r.ID = id }
func (r *vanishingChannelRecord) recordID() string      { return r.ID }
func (r *vanishingChannelRecord) setRecordID(id string) { r.ID = id }
func (r *webhookRecord) recordID() string               { return r.ID }
func (r *webhookRecord) setRecordID(id string)          { r.ID = id }
func (r *webhookDeliveryRecord) recordID() string       { return r.ID }
func (r *webhookDeliveryRecord) setRecordID(id string)  { r.ID = id }
func (r *logEntryRecord) recordID() string              { return r.ID }
func (r *logEntryRecord) setRecordID(id string)         { r.ID = id }
func (r *refreshTokenRecord) recordID() string          { return r.ID }
func (r *refreshTokenRecord) setRecordID(id string)     { r.ID = id }

func isUUID(value string) bool {
	_, err := uuid.Parse(strings.TrimSpace(value))
	return err == nil
}
