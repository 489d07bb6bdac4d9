package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DraftStore хранит черновики курсов на стороне сервера до отправки.
// Чужой или просроченный черновик неотличим от отсутствующего.
type DraftStore interface {
	Create(ctx context.Context, ownerID string) (*Draft, error)
	Get(ctx context.Context, id, ownerID string) (*Draft, error)
	Save(ctx context.Context, d *Draft) error
	Delete(ctx context.Context, id string) error
	DeleteOwner(ctx context.Context, ownerID string) error
}

func newDraft(ownerID string, now time.Time) *Draft {
	return &Draft{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Meta:      NewCourseMeta(),
		Tree:      NewDraftTree(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func cloneDraft(d *Draft) (*Draft, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out Draft
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---------- в памяти ----------

type MemoryDraftStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	drafts map[string]*Draft
}

func NewMemoryDraftStore(ttl time.Duration) *MemoryDraftStore {
	return &MemoryDraftStore{
		ttl:    ttl,
		now:    time.Now,
		drafts: map[string]*Draft{},
	}
}

// вызывать под mu
func (s *MemoryDraftStore) evictLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, d := range s.drafts {
		if d.UpdatedAt.Before(cutoff) {
			delete(s.drafts, id)
		}
	}
}

func (s *MemoryDraftStore) Create(_ context.Context, ownerID string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()

	d := newDraft(ownerID, s.now())
	stored, err := cloneDraft(d)
	if err != nil {
		return nil, err
	}
	s.drafts[d.ID] = stored
	return d, nil
}

func (s *MemoryDraftStore) Get(_ context.Context, id, ownerID string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()

	d, ok := s.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return nil, ErrDraftNotFound
	}
	return cloneDraft(d)
}

func (s *MemoryDraftStore) Save(_ context.Context, d *Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.drafts[d.ID]
	if !ok || existing.OwnerID != d.OwnerID {
		return ErrDraftNotFound
	}
	d.UpdatedAt = s.now()
	stored, err := cloneDraft(d)
	if err != nil {
		return err
	}
	s.drafts[d.ID] = stored
	return nil
}

func (s *MemoryDraftStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
	return nil
}

func (s *MemoryDraftStore) DeleteOwner(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.drafts {
		if d.OwnerID == ownerID {
			delete(s.drafts, id)
		}
	}
	return nil
}

// ---------- postgres (gorm) ----------

type GormDraftStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewGormDraftStore(gormDB *gorm.DB, ttl time.Duration) *GormDraftStore {
	return &GormDraftStore{db: gormDB, ttl: ttl, now: time.Now}
}

func (s *GormDraftStore) cutoff() time.Time {
	return s.now().Add(-s.ttl)
}

func (s *GormDraftStore) Create(ctx context.Context, ownerID string) (*Draft, error) {
	if s.ttl > 0 {
		if err := s.db.WithContext(ctx).
			Where("updated_at < ?", s.cutoff()).
			Delete(&DraftRecord{}).Error; err != nil {
			logger.Warn("draft eviction failed", "error", err)
		}
	}

	d := newDraft(ownerID, s.now())
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	rec := DraftRecord{
		ID:        d.ID,
		OwnerID:   ownerID,
		Data:      datatypes.JSON(data),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	return d, nil
}

func (s *GormDraftStore) Get(ctx context.Context, id, ownerID string) (*Draft, error) {
	q := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID)
	if s.ttl > 0 {
		q = q.Where("updated_at >= ?", s.cutoff())
	}
	var rec DraftRecord
	if err := q.First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal(rec.Data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *GormDraftStore) Save(ctx context.Context, d *Draft) error {
	d.UpdatedAt = s.now()
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&DraftRecord{}).
		Where("id = ? AND owner_id = ?", d.ID, d.OwnerID).
		Updates(map[string]any{
			"data":       datatypes.JSON(data),
			"updated_at": d.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDraftNotFound
	}
	return nil
}

func (s *GormDraftStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&DraftRecord{}).Error
}

func (s *GormDraftStore) DeleteOwner(ctx context.Context, ownerID string) error {
	return s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&DraftRecord{}).Error
}
