package mocks

import (
	context "context"

	engine "github.com/hbomb79/mediaload/internal/engine"
	mock "github.com/stretchr/testify/mock"
)

// MockEngine is a mock type for the Engine type, in the layout mockery's expecter
// template produces (see .mockery.yaml).
type MockEngine struct {
	mock.Mock
}

type MockEngine_Expecter struct {
	mock *mock.Mock
}

func (_m *MockEngine) EXPECT() *MockEngine_Expecter {
	return &MockEngine_Expecter{mock: &_m.Mock}
}

// Fetch provides a mock function with given fields: ctx, url, opts, onProgress
func (_m *MockEngine) Fetch(ctx context.Context, url string, opts engine.Options, onProgress engine.ProgressFunc) error {
	ret := _m.Called(ctx, url, opts, onProgress)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, engine.Options, engine.ProgressFunc) error); ok {
		r0 = rf(ctx, url, opts, onProgress)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// MockEngine_Fetch_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Fetch'
type MockEngine_Fetch_Call struct {
	*mock.Call
}

// Fetch is a helper method to define mock.On call
//   - ctx context.Context
//   - url string
//   - opts engine.Options
//   - onProgress engine.ProgressFunc
func (_e *MockEngine_Expecter) Fetch(ctx interface{}, url interface{}, opts interface{}, onProgress interface{}) *MockEngine_Fetch_Call {
	return &MockEngine_Fetch_Call{Call: _e.mock.On("Fetch", ctx, url, opts, onProgress)}
}

func (_c *MockEngine_Fetch_Call) Run(run func(ctx context.Context, url string, opts engine.Options, onProgress engine.ProgressFunc)) *MockEngine_Fetch_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string), args[2].(engine.Options), args[3].(engine.ProgressFunc))
	})
	return _c
}

func (_c *MockEngine_Fetch_Call) Return(_a0 error) *MockEngine_Fetch_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockEngine_Fetch_Call) RunAndReturn(run func(context.Context, string, engine.Options, engine.ProgressFunc) error) *MockEngine_Fetch_Call {
	_c.Call.Return(run)
	return _c
}

// Probe provides a mock function with given fields: ctx, url
func (_m *MockEngine) Probe(ctx context.Context, url string) (*engine.Metadata, error) {
	ret := _m.Called(ctx, url)

	var r0 *engine.Metadata
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*engine.Metadata, error)); ok {
		return rf(ctx, url)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *engine.Metadata); ok {
		r0 = rf(ctx, url)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*engine.Metadata)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, url)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// MockEngine_Probe_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Probe'
type MockEngine_Probe_Call struct {
	*mock.Call
}

// Probe is a helper method to define mock.On call
//   - ctx context.Context
//   - url string
func (_e *MockEngine_Expecter) Probe(ctx interface{}, url interface{}) *MockEngine_Probe_Call {
	return &MockEngine_Probe_Call{Call: _e.mock.On("Probe", ctx, url)}
}

func (_c *MockEngine_Probe_Call) Run(run func(ctx context.Context, url string)) *MockEngine_Probe_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string))
	})
	return _c
}

func (_c *MockEngine_Probe_Call) Return(_a0 *engine.Metadata, _a1 error) *MockEngine_Probe_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

func (_c *MockEngine_Probe_Call) RunAndReturn(run func(context.Context, string) (*engine.Metadata, error)) *MockEngine_Probe_Call {
	_c.Call.Return(run)
	return _c
}

// NewMockEngine creates a new instance of MockEngine. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockEngine(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockEngine {
	mock := &MockEngine{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
