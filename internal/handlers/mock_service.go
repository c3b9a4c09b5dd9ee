package handlers

import (
	"context"
	"net/http"
	"time"

	"aquafarm"
	"aquafarm/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockIngest struct {
	reading    aquafarm.SensorReading
	err        error
	lastParams service.ReadingParams
	calls      int
}

func (m *mockIngest) HandleReading(ctx context.Context, p service.ReadingParams) (aquafarm.SensorReading, error) {
	m.calls++
	m.lastParams = p
	return m.reading, m.err
}

type mockAlerts struct {
	alerts     []aquafarm.Alert
	listErr    error
	ackErr     error
	resolveErr error

	lastListStatus string
	lastAckID      string
	lastAckParams  service.CorrectiveActionParams
	lastResolveID  string
}

func (m *mockAlerts) OpenOrTouch(ctx context.Context, scope aquafarm.AlertScope, reading aquafarm.SensorReading, threshold aquafarm.SpeciesThreshold) (aquafarm.Alert, bool, error) {
	return aquafarm.Alert{}, false, nil
}
func (m *mockAlerts) Acknowledge(ctx context.Context, alertID string, p service.CorrectiveActionParams) error {
	m.lastAckID = alertID
	m.lastAckParams = p
	return m.ackErr
}
func (m *mockAlerts) Resolve(ctx context.Context, alertID string) error {
	m.lastResolveID = alertID
	return m.resolveErr
}
func (m *mockAlerts) List(ctx context.Context, status string) ([]aquafarm.Alert, error) {
	m.lastListStatus = status
	return m.alerts, m.listErr
}

type mockJobs struct {
	jobs         []aquafarm.Job
	listErr      error
	setActiveErr error

	lastActiveJobID int
	lastActive      bool
}

func (m *mockJobs) EvaluateReading(ctx context.Context, reading aquafarm.SensorReading) error {
	return nil
}
func (m *mockJobs) EvaluateTick(ctx context.Context, now time.Time) error { return nil }

func (m *mockJobs) List(ctx context.Context) ([]aquafarm.Job, error) { return m.jobs, m.listErr }

func (m *mockJobs) SetActive(ctx context.Context, jobID int, active bool) error {
	m.lastActiveJobID = jobID
	m.lastActive = active
	return m.setActiveErr
}

type mockDispatcher struct {
	devices    []aquafarm.ControlDevice
	devicesErr error
	applyErr   error

	lastApplyDeviceID int
	lastApplyDesired  bool
}

func (m *mockDispatcher) Apply(ctx context.Context, deviceID int, desired bool) error {
	m.lastApplyDeviceID = deviceID
	m.lastApplyDesired = desired
	return m.applyErr
}
func (m *mockDispatcher) Devices(ctx context.Context) ([]aquafarm.ControlDevice, error) {
	return m.devices, m.devicesErr
}

type mockEventLog struct {
	resp     []aquafarm.EngineEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]aquafarm.EngineEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
