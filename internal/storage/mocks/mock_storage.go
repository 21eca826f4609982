package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pinworld/internal/storage"
)

type MockContentHost struct {
	mock.Mock
}

func (m *MockContentHost) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContentHost) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockContentHost) Put(ctx context.Context, path, content string, opt storage.PutOptions) (storage.Response, error) {
	args := m.Called(ctx, path, content, opt)
	if f, ok := args.Get(0).(func(context.Context, string, string, storage.PutOptions) storage.Response); ok {
		return f(ctx, path, content, opt), args.Error(1)
	}
	return args.Get(0).(storage.Response), args.Error(1)
}
