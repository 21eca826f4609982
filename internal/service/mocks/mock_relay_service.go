package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pinworld/internal/model"
	"pinworld/internal/storage"
)

type MockRelayService struct {
	mock.Mock
}

func (m *MockRelayService) Forward(ctx context.Context, req model.UploadRequest) (storage.Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(storage.Response), args.Error(1)
}
