package registry

import (
	"context"

	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockModule mocks the interfaces.Module interface
type MockModule struct {
	mock.Mock
}

// ID mocks the ID method
func (m *MockModule) ID() interfaces.ModuleID {
	args := m.Called()
	return args.Get(0).(interfaces.ModuleID)
}

// Describe mocks the Describe method
func (m *MockModule) Describe() interfaces.Descriptor {
	args := m.Called()
	return args.Get(0).(interfaces.Descriptor)
}

// State mocks the State method
func (m *MockModule) State() interfaces.ModuleState {
	args := m.Called()
	return args.Get(0).(interfaces.ModuleState)
}

// Advance mocks the Advance method
func (m *MockModule) Advance(ctx context.Context, input map[string]string) interfaces.Response {
	args := m.Called(ctx, input)
	return args.Get(0).(interfaces.Response)
}

// ShareIfAuthorized mocks the ShareIfAuthorized method
func (m *MockModule) ShareIfAuthorized() (interfaces.Share, bool) {
	args := m.Called()
	return args.Get(0).(interfaces.Share), args.Bool(1)
}

// Enroll mocks the Enroll method
func (m *MockModule) Enroll(ctx context.Context, input map[string]string, share interfaces.Share) (*interfaces.Enrollment, error) {
	args := m.Called(ctx, input, share)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Enrollment), args.Error(1)
}

// Load mocks the Load method
func (m *MockModule) Load(part interfaces.KeyPart) error {
	args := m.Called(part)
	return args.Error(0)
}

// Reset mocks the Reset method
func (m *MockModule) Reset() {
	m.Called()
}

// NewMockModule returns a mock answering ID and Describe for id.
func NewMockModule(id interfaces.ModuleID, name string) *MockModule {
	m := new(MockModule)
	m.On("ID").Return(id).Maybe()
	m.On("Describe").Return(interfaces.Descriptor{ID: id, Name: name}).Maybe()
	return m
}
