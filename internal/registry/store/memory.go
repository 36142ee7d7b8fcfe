package store

import (
	"context"
	"sync"
	"time"

	"presentia/internal/registry/models"
	id "presentia/pkg/domain"
	"presentia/pkg/platform/sentinel"
)

// InMemory keeps registrations under a single mutex, which gives
// CreateIfAbsent and RecordAttempt the same atomicity the postgres
// implementation gets from unique indexes and single-statement updates.
type InMemory struct {
	mu           sync.RWMutex
	byID         map[id.RegistrationID]*models.Registration
	byCommitment map[commitmentKey]id.RegistrationID
	byNullifier  map[nullifierKey]id.RegistrationID
}

type commitmentKey struct {
	commitment    string
	biometricType id.BiometricType
}

type nullifierKey struct {
	nullifier     string
	biometricType id.BiometricType
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:         make(map[id.RegistrationID]*models.Registration),
		byCommitment: make(map[commitmentKey]id.RegistrationID),
		byNullifier:  make(map[nullifierKey]id.RegistrationID),
	}
}

func (s *InMemory) CreateIfAbsent(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := commitmentKey{reg.CommitmentHash, reg.BiometricType}
	if _, exists := s.byCommitment[ck]; exists {
		return ErrDuplicateCommitment
	}
	nk := nullifierKey{reg.Nullifier, reg.BiometricType}
	if _, exists := s.byNullifier[nk]; exists {
		return ErrDuplicateNullifier
	}

	clone := *reg
	s.byID[reg.ID] = &clone
	s.byCommitment[ck] = reg.ID
	s.byNullifier[nk] = reg.ID
	return nil
}

func (s *InMemory) FindByCommitment(_ context.Context, commitmentHash string, biometricType id.BiometricType) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regID, ok := s.byCommitment[commitmentKey{commitmentHash, biometricType}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.cloneLocked(regID)
}

func (s *InMemory) FindByNullifier(_ context.Context, nullifier string, biometricType id.BiometricType) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regID, ok := s.byNullifier[nullifierKey{nullifier, biometricType}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.cloneLocked(regID)
}

func (s *InMemory) RecordAttempt(_ context.Context, regID id.RegistrationID, at time.Time) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.byID[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	reg.ApplyDuplicateAttempt(at)
	clone := *reg
	return &clone, nil
}

func (s *InMemory) Delete(_ context.Context, regID id.RegistrationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.byID[regID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byCommitment, commitmentKey{reg.CommitmentHash, reg.BiometricType})
	delete(s.byNullifier, nullifierKey{reg.Nullifier, reg.BiometricType})
	delete(s.byID, regID)
	return nil
}

func (s *InMemory) cloneLocked(regID id.RegistrationID) (*models.Registration, error) {
	reg, ok := s.byID[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *reg
	return &clone, nil
}
