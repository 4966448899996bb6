// Package mocks holds gomock mocks of the transport interfaces.
package mocks

import (
	"context"
	"reflect"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/meshsync/go-meshsync/transport"
)

// MockTransport is a mock of Transport interface.
type MockTransport struct {
	ctrl     *gomock.Controller
	recorder *MockTransportMockRecorder
}

// MockTransportMockRecorder is the mock recorder for MockTransport.
type MockTransportMockRecorder struct {
	mock *MockTransport
}

// NewMockTransport creates a new mock instance.
func NewMockTransport(ctrl *gomock.Controller) *MockTransport {
	mock := &MockTransport{ctrl: ctrl}
	mock.recorder = &MockTransportMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTransport) EXPECT() *MockTransportMockRecorder {
	return m.recorder
}

// Connect mocks base method.
func (m *MockTransport) Connect(arg0 context.Context, arg1 string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Connect", arg0, arg1)
	ret0, _ := ret[0].(error)
	return ret0
}

// Connect indicates an expected call of Connect.
func (mr *MockTransportMockRecorder) Connect(arg0 any, arg1 any) *MockTransportConnectCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Connect", reflect.TypeOf((*MockTransport)(nil).Connect), arg0, arg1)
	return &MockTransportConnectCall{Call: call}
}

// MockTransportConnectCall wrap *gomock.Call.
type MockTransportConnectCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockTransportConnectCall) Return(arg0 error) *MockTransportConnectCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockTransportConnectCall) Do(f func(context.Context, string) error) *MockTransportConnectCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockTransportConnectCall) DoAndReturn(f func(context.Context, string) error) *MockTransportConnectCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Disconnect mocks base method.
func (m *MockTransport) Disconnect() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Disconnect")
	ret0, _ := ret[0].(error)
	return ret0
}

// Disconnect indicates an expected call of Disconnect.
func (mr *MockTransportMockRecorder) Disconnect() *MockTransportDisconnectCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Disconnect", reflect.TypeOf((*MockTransport)(nil).Disconnect))
	return &MockTransportDisconnectCall{Call: call}
}

// MockTransportDisconnectCall wrap *gomock.Call.
type MockTransportDisconnectCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockTransportDisconnectCall) Return(arg0 error) *MockTransportDisconnectCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockTransportDisconnectCall) Do(f func() error) *MockTransportDisconnectCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockTransportDisconnectCall) DoAndReturn(f func() error) *MockTransportDisconnectCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// IsConnected mocks base method.
func (m *MockTransport) IsConnected() bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IsConnected")
	ret0, _ := ret[0].(bool)
	return ret0
}

// IsConnected indicates an expected call of IsConnected.
func (mr *MockTransportMockRecorder) IsConnected() *MockTransportIsConnectedCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsConnected", reflect.TypeOf((*MockTransport)(nil).IsConnected))
	return &MockTransportIsConnectedCall{Call: call}
}

// MockTransportIsConnectedCall wrap *gomock.Call.
type MockTransportIsConnectedCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockTransportIsConnectedCall) Return(arg0 bool) *MockTransportIsConnectedCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockTransportIsConnectedCall) Do(f func() bool) *MockTransportIsConnectedCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockTransportIsConnectedCall) DoAndReturn(f func() bool) *MockTransportIsConnectedCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Receive mocks base method.
func (m *MockTransport) Receive(arg0 context.Context, arg1 time.Duration) ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Receive", arg0, arg1)
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Receive indicates an expected call of Receive.
func (mr *MockTransportMockRecorder) Receive(arg0 any, arg1 any) *MockTransportReceiveCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Receive", reflect.TypeOf((*MockTransport)(nil).Receive), arg0, arg1)
	return &MockTransportReceiveCall{Call: call}
}

// MockTransportReceiveCall wrap *gomock.Call.
type MockTransportReceiveCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockTransportReceiveCall) Return(arg0 []byte, arg1 error) *MockTransportReceiveCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockTransportReceiveCall) Do(f func(context.Context, time.Duration) ([]byte, error)) *MockTransportReceiveCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockTransportReceiveCall) DoAndReturn(f func(context.Context, time.Duration) ([]byte, error)) *MockTransportReceiveCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Send mocks base method.
func (m *MockTransport) Send(arg0 context.Context, arg1 []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Send", arg0, arg1)
	ret0, _ := ret[0].(error)
	return ret0
}

// Send indicates an expected call of Send.
func (mr *MockTransportMockRecorder) Send(arg0 any, arg1 any) *MockTransportSendCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*MockTransport)(nil).Send), arg0, arg1)
	return &MockTransportSendCall{Call: call}
}

// MockTransportSendCall wrap *gomock.Call.
type MockTransportSendCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockTransportSendCall) Return(arg0 error) *MockTransportSendCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockTransportSendCall) Do(f func(context.Context, []byte) error) *MockTransportSendCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockTransportSendCall) DoAndReturn(f func(context.Context, []byte) error) *MockTransportSendCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Stats mocks base method.
func (m *MockTransport) Stats() transport.Stats {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Stats")
	ret0, _ := ret[0].(transport.Stats)
	return ret0
}

// Stats indicates an expected call of Stats.
func (mr *MockTransportMockRecorder) Stats() *MockTransportStatsCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Stats", reflect.TypeOf((*MockTransport)(nil).Stats))
	return &MockTransportStatsCall{Call: call}
}

// MockTransportStatsCall wrap *gomock.Call.
type MockTransportStatsCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockTransportStatsCall) Return(arg0 transport.Stats) *MockTransportStatsCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockTransportStatsCall) Do(f func() transport.Stats) *MockTransportStatsCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockTransportStatsCall) DoAndReturn(f func() transport.Stats) *MockTransportStatsCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// MockRSSIReporter is a mock of RSSIReporter interface.
type MockRSSIReporter struct {
	ctrl     *gomock.Controller
	recorder *MockRSSIReporterMockRecorder
}

// MockRSSIReporterMockRecorder is the mock recorder for MockRSSIReporter.
type MockRSSIReporterMockRecorder struct {
	mock *MockRSSIReporter
}

// NewMockRSSIReporter creates a new mock instance.
func NewMockRSSIReporter(ctrl *gomock.Controller) *MockRSSIReporter {
	mock := &MockRSSIReporter{ctrl: ctrl}
	mock.recorder = &MockRSSIReporterMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRSSIReporter) EXPECT() *MockRSSIReporterMockRecorder {
	return m.recorder
}

// LastRSSI mocks base method.
func (m *MockRSSIReporter) LastRSSI() int16 {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LastRSSI")
	ret0, _ := ret[0].(int16)
	return ret0
}

// LastRSSI indicates an expected call of LastRSSI.
func (mr *MockRSSIReporterMockRecorder) LastRSSI() *MockRSSIReporterLastRSSICall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LastRSSI", reflect.TypeOf((*MockRSSIReporter)(nil).LastRSSI))
	return &MockRSSIReporterLastRSSICall{Call: call}
}

// MockRSSIReporterLastRSSICall wrap *gomock.Call.
type MockRSSIReporterLastRSSICall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockRSSIReporterLastRSSICall) Return(arg0 int16) *MockRSSIReporterLastRSSICall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockRSSIReporterLastRSSICall) Do(f func() int16) *MockRSSIReporterLastRSSICall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockRSSIReporterLastRSSICall) DoAndReturn(f func() int16) *MockRSSIReporterLastRSSICall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}
