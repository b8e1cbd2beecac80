// Code generated by hand in the style mockgen would produce for
// //go:generate mockgen -destination=mock_sim_test.go -package=cpu github.com/archsim/memhier/sim Port
// DO NOT EDIT actual mockgen output; this file is maintained by hand because
// this module does not run the Go toolchain to regenerate it.

package cpu

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	"github.com/archsim/memhier/sim"
)

// MockPort is a mock of the sim.Port interface.
type MockPort struct {
	ctrl     *gomock.Controller
	recorder *MockPortMockRecorder
}

// MockPortMockRecorder is the mock recorder for MockPort.
type MockPortMockRecorder struct {
	mock *MockPort
}

// NewMockPort creates a new mock instance.
func NewMockPort(ctrl *gomock.Controller) *MockPort {
	mock := &MockPort{ctrl: ctrl}
	mock.recorder = &MockPortMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPort) EXPECT() *MockPortMockRecorder {
	return m.recorder
}

func (m *MockPort) Name() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Name")
	return ret[0].(string)
}

func (mr *MockPortMockRecorder) Name() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Name", reflect.TypeOf((*MockPort)(nil).Name))
}

func (m *MockPort) AcceptHook(hook sim.Hook) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "AcceptHook", hook)
}

func (mr *MockPortMockRecorder) AcceptHook(hook interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AcceptHook", reflect.TypeOf((*MockPort)(nil).AcceptHook), hook)
}

func (m *MockPort) NumHooks() int {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "NumHooks")
	return ret[0].(int)
}

func (mr *MockPortMockRecorder) NumHooks() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "NumHooks", reflect.TypeOf((*MockPort)(nil).NumHooks))
}

func (m *MockPort) SetOwner(owner sim.PortOwner) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "SetOwner", owner)
}

func (mr *MockPortMockRecorder) SetOwner(owner interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetOwner", reflect.TypeOf((*MockPort)(nil).SetOwner), owner)
}

func (m *MockPort) Owner() sim.PortOwner {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Owner")
	ret0, _ := ret[0].(sim.PortOwner)
	return ret0
}

func (mr *MockPortMockRecorder) Owner() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Owner", reflect.TypeOf((*MockPort)(nil).Owner))
}

func (m *MockPort) SetPeer(peer sim.Port) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "SetPeer", peer)
}

func (mr *MockPortMockRecorder) SetPeer(peer interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetPeer", reflect.TypeOf((*MockPort)(nil).SetPeer), peer)
}

func (m *MockPort) Peer() sim.Port {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Peer")
	ret0, _ := ret[0].(sim.Port)
	return ret0
}

func (mr *MockPortMockRecorder) Peer() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Peer", reflect.TypeOf((*MockPort)(nil).Peer))
}

func (m *MockPort) SendTiming(msg sim.Msg) bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendTiming", msg)
	return ret[0].(bool)
}

func (mr *MockPortMockRecorder) SendTiming(msg interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendTiming", reflect.TypeOf((*MockPort)(nil).SendTiming), msg)
}

func (m *MockPort) SendAtomic(msg sim.Msg) sim.VTimeInSec {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendAtomic", msg)
	return ret[0].(sim.VTimeInSec)
}

func (mr *MockPortMockRecorder) SendAtomic(msg interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendAtomic", reflect.TypeOf((*MockPort)(nil).SendAtomic), msg)
}

func (m *MockPort) SendFunctional(msg sim.Msg) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "SendFunctional", msg)
}

func (mr *MockPortMockRecorder) SendFunctional(msg interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendFunctional", reflect.TypeOf((*MockPort)(nil).SendFunctional), msg)
}

func (m *MockPort) SendRetry() {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "SendRetry")
}

func (mr *MockPortMockRecorder) SendRetry() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendRetry", reflect.TypeOf((*MockPort)(nil).SendRetry))
}

// MockScheduler is a mock of the cpu.Scheduler interface (sim.TimeTeller +
// sim.EventScheduler).
type MockScheduler struct {
	ctrl     *gomock.Controller
	recorder *MockSchedulerMockRecorder
}

// MockSchedulerMockRecorder is the mock recorder for MockScheduler.
type MockSchedulerMockRecorder struct {
	mock *MockScheduler
}

// NewMockScheduler creates a new mock instance.
func NewMockScheduler(ctrl *gomock.Controller) *MockScheduler {
	mock := &MockScheduler{ctrl: ctrl}
	mock.recorder = &MockSchedulerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockScheduler) EXPECT() *MockSchedulerMockRecorder {
	return m.recorder
}

func (m *MockScheduler) CurrentTime() sim.VTimeInSec {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CurrentTime")
	return ret[0].(sim.VTimeInSec)
}

func (mr *MockSchedulerMockRecorder) CurrentTime() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CurrentTime", reflect.TypeOf((*MockScheduler)(nil).CurrentTime))
}

func (m *MockScheduler) Schedule(e sim.Event) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Schedule", e)
}

func (mr *MockSchedulerMockRecorder) Schedule(e interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Schedule", reflect.TypeOf((*MockScheduler)(nil).Schedule), e)
}

func (m *MockScheduler) Deschedule(e sim.Event) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Deschedule", e)
}

func (mr *MockSchedulerMockRecorder) Deschedule(e interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Deschedule", reflect.TypeOf((*MockScheduler)(nil).Deschedule), e)
}

var (
	_ sim.Port  = (*MockPort)(nil)
	_ Scheduler = (*MockScheduler)(nil)
)
