package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"seriesdash/internal/series"
	"seriesdash/internal/sources"
)

// MockSource is a mock for sources.Source
type MockSource struct {
	mock.Mock
	name string
}

func (m *MockSource) Name() string { return m.name }

func (m *MockSource) Load(ctx context.Context) (series.Table, error) {
	args := m.Called(ctx)
	return args.Get(0).(series.Table), args.Error(1)
}

// MockParamSource is a mock for sources.Parameterized
type MockParamSource struct {
	MockSource
}

func (m *MockParamSource) WithParams(p sources.Params) (sources.Source, error) {
	args := m.Called(p)
	if src, ok := args.Get(0).(sources.Source); ok {
		return src, args.Error(1)
	}
	return nil, args.Error(1)
}

// mapProvider serves sources from a map
type mapProvider map[string]sources.Source

func (p mapProvider) Get(name string) (sources.Source, bool) {
	src, ok := p[name]
	return src, ok
}
