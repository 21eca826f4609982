package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pinworld/internal/model"
)

type MockPinRepository struct {
	mock.Mock
}

func (m *MockPinRepository) Insert(ctx context.Context, fields model.Fields, createdAt string) (string, error) {
	args := m.Called(ctx, fields, createdAt)
	return args.String(0), args.Error(1)
}

func (m *MockPinRepository) Merge(ctx context.Context, id string, fields model.Fields, updatedAt string) error {
	args := m.Called(ctx, id, fields, updatedAt)
	return args.Error(0)
}

func (m *MockPinRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPinRepository) List(ctx context.Context) ([]model.Pin, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Pin), args.Error(1)
}
