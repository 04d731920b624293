// Package mocks provides test doubles for the apollo client.
package mocks

import (
	"context"

	apollo "github.com/sells-group/lead-prospector/pkg/apollo"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// EnrichOrganization provides a mock function with given fields: ctx, domain
func (_m *MockClient) EnrichOrganization(ctx context.Context, domain string) (*apollo.Organization, error) {
	ret := _m.Called(ctx, domain)

	if len(ret) == 0 {
		panic("no return value specified for EnrichOrganization")
	}

	var r0 *apollo.Organization
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*apollo.Organization, error)); ok {
		return rf(ctx, domain)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*apollo.Organization)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// SearchPeople provides a mock function with given fields: ctx, q
func (_m *MockClient) SearchPeople(ctx context.Context, q apollo.PeopleQuery) (*apollo.PeopleResponse, error) {
	ret := _m.Called(ctx, q)

	if len(ret) == 0 {
		panic("no return value specified for SearchPeople")
	}

	var r0 *apollo.PeopleResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, apollo.PeopleQuery) (*apollo.PeopleResponse, error)); ok {
		return rf(ctx, q)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*apollo.PeopleResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
