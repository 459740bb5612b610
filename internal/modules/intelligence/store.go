package intelligence

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/decidepage/core/internal/models"
)

// Payload is the extracted intelligence object. Its shape is owned by the
// extraction prompts; the store treats it as opaque JSON.
type Payload = map[string]interface{}

// Store persists one versioned intelligence record per owner.
//
// Writes are compare-and-swap on the version column: a writer states the
// version it read, and loses if the row moved underneath it. The loser gets
// ErrConflict and must re-read before retrying.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get loads the record for an owner. Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, ownerType models.OwnerType, ownerID string) (*models.IntelligenceRecordModel, error) {
	var rec models.IntelligenceRecordModel
	err := s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put writes a new generation of intelligence for an owner.
//
// expectVersion is the version the caller read before extracting; 0 means the
// caller saw no record. On success the stored version is expectVersion+1 and
// the prior payload moves into Previous. Returns ErrConflict when another
// writer committed in between.
func (s *Store) Put(ctx context.Context, ownerType models.OwnerType, ownerID string, payload Payload, expectVersion int) (*models.IntelligenceRecordModel, error) {
	if expectVersion == 0 {
		return s.insert(ctx, ownerType, ownerID, payload)
	}
	return s.update(ctx, ownerType, ownerID, payload, expectVersion)
}

func (s *Store) insert(ctx context.Context, ownerType models.OwnerType, ownerID string, payload Payload) (*models.IntelligenceRecordModel, error) {
	rec := models.IntelligenceRecordModel{
		OwnerID:     ownerID,
		OwnerType:   ownerType,
		Current:     payload,
		Version:     1,
		ExtractedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Create(&rec).Error
	if isDuplicateKey(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) update(ctx context.Context, ownerType models.OwnerType, ownerID string, payload Payload, expectVersion int) (*models.IntelligenceRecordModel, error) {
	prev, err := s.Get(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	if prev.Version != expectVersion {
		return nil, ErrConflict
	}

	res := s.db.WithContext(ctx).
		Model(&models.IntelligenceRecordModel{}).
		Where("owner_type = ? AND owner_id = ? AND version = ?", ownerType, ownerID, expectVersion).
		Updates(map[string]interface{}{
			"current":      models.JSONValue(payload),
			"previous":     models.JSONValue(prev.Current),
			"version":      expectVersion + 1,
			"extracted_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConflict
	}

	return s.Get(ctx, ownerType, ownerID)
}

// Delete removes the record for an owner. Missing records are not an error.
func (s *Store) Delete(ctx context.Context, ownerType models.OwnerType, ownerID string) error {
	return s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Delete(&models.IntelligenceRecordModel{}).Error
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
