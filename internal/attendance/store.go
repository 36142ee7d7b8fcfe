package attendance

import (
	"context"
	"sync"

	id "presentia/pkg/domain"
	"presentia/pkg/platform/sentinel"
)

// EnrollmentStore persists per-owner enrollments. Lookup misses are
// sentinel.ErrNotFound; a second enrollment for the same (owner, type) is
// sentinel.ErrConflict.
type EnrollmentStore interface {
	Create(ctx context.Context, enrollment *Enrollment) error
	FindByOwnerAndType(ctx context.Context, owner id.OwnerID, biometricType id.BiometricType) (*Enrollment, error)
	Delete(ctx context.Context, enrollmentID id.EnrollmentID) error
}

type ownerTypeKey struct {
	owner         id.OwnerID
	biometricType id.BiometricType
}

// InMemoryStore is the test and single-instance EnrollmentStore.
type InMemoryStore struct {
	mu          sync.RWMutex
	byID        map[id.EnrollmentID]*Enrollment
	byOwnerType map[ownerTypeKey]id.EnrollmentID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:        make(map[id.EnrollmentID]*Enrollment),
		byOwnerType: make(map[ownerTypeKey]id.EnrollmentID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, enrollment *Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerTypeKey{owner: enrollment.OwnerID, biometricType: enrollment.BiometricType}
	if _, exists := s.byOwnerType[key]; exists {
		return sentinel.ErrConflict
	}
	clone := *enrollment
	s.byID[enrollment.ID] = &clone
	s.byOwnerType[key] = enrollment.ID
	return nil
}

func (s *InMemoryStore) FindByOwnerAndType(_ context.Context, owner id.OwnerID, biometricType id.BiometricType) (*Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enrollmentID, ok := s.byOwnerType[ownerTypeKey{owner: owner, biometricType: biometricType}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[enrollmentID]
	return &clone, nil
}

func (s *InMemoryStore) Delete(_ context.Context, enrollmentID id.EnrollmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enrollment, ok := s.byID[enrollmentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byOwnerType, ownerTypeKey{owner: enrollment.OwnerID, biometricType: enrollment.BiometricType})
	delete(s.byID, enrollmentID)
	return nil
}
