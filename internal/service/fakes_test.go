package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fitforge/wearable-sync-go/internal/fitbit"
	"github.com/fitforge/wearable-sync-go/internal/model"
	"github.com/fitforge/wearable-sync-go/internal/repository"
)

// In-memory fakes shared by the service tests. All are safe for concurrent
// use because the sync worker pool calls them from multiple goroutines.

type fakeConnectionRepo struct {
	mu          sync.Mutex
	connections map[string]*model.Connection
	markedErr   map[string]string
	deactivated map[string]string
	upsertErr   error
}

func newFakeConnectionRepo(conns ...*model.Connection) *fakeConnectionRepo {
	r := &fakeConnectionRepo{
		connections: map[string]*model.Connection{},
		markedErr:   map[string]string{},
		deactivated: map[string]string{},
	}
	for _, c := range conns {
		r.connections[c.ID] = c
	}
	return r
}

func (r *fakeConnectionRepo) FindByID(_ context.Context, id string) (*model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.connections[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeConnectionRepo) FindByUserAndProvider(_ context.Context, userID string, provider model.Provider) (*model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.connections {
		if c.UserID == userID && c.Provider == provider {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeConnectionRepo) FindByUserID(_ context.Context, userID string) ([]model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Connection
	for _, c := range r.connections {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConnectionRepo) FindActiveByProvider(_ context.Context, provider model.Provider) ([]model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Connection
	for _, c := range r.connections {
		if c.Provider == provider && c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConnectionRepo) Upsert(_ context.Context, params model.UpsertConnectionParams) (*model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}
	for _, c := range r.connections {
		if c.UserID == params.UserID && c.Provider == params.Provider {
			c.AccessToken = &params.AccessToken
			c.RefreshToken = params.RefreshToken
			c.TokenExpiresAt = params.TokenExpiresAt
			c.ProviderUserID = params.ProviderUserID
			c.IsActive = true
			c.SyncError = nil
			copied := *c
			return &copied, nil
		}
	}
	conn := &model.Connection{
		ID:             fmt.Sprintf("conn-%d", len(r.connections)+1),
		UserID:         params.UserID,
		Provider:       params.Provider,
		AccessToken:    &params.AccessToken,
		RefreshToken:   params.RefreshToken,
		TokenExpiresAt: params.TokenExpiresAt,
		ProviderUserID: params.ProviderUserID,
		IsActive:       true,
	}
	r.connections[conn.ID] = conn
	copied := *conn
	return &copied, nil
}

func (r *fakeConnectionRepo) UpdateTokens(_ context.Context, id string, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok {
		return fmt.Errorf("connection %s not found", id)
	}
	c.AccessToken = &accessToken
	c.RefreshToken = refreshToken
	c.TokenExpiresAt = expiresAt
	return nil
}

func (r *fakeConnectionRepo) MarkSynced(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok {
		return 0, fmt.Errorf("connection %s not found", id)
	}
	now := time.Now()
	c.LastSyncAt = &now
	c.SyncError = nil
	c.SyncStreak++
	return c.SyncStreak, nil
}

func (r *fakeConnectionRepo) MarkSyncError(_ context.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok {
		return fmt.Errorf("connection %s not found", id)
	}
	c.SyncError = &message
	c.SyncStreak = 0
	r.markedErr[id] = message
	return nil
}

func (r *fakeConnectionRepo) Deactivate(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok {
		return fmt.Errorf("connection %s not found", id)
	}
	c.IsActive = false
	c.AccessToken = nil
	c.RefreshToken = nil
	r.deactivated[id] = reason
	return nil
}

func (r *fakeConnectionRepo) WithTx(*sqlx.Tx) repository.ConnectionRepository { return r }

type metricKey struct {
	userID string
	source model.MetricSource
	day    string
}

type fakeMetricRepo struct {
	mu        sync.Mutex
	metrics   map[metricKey]*model.HealthMetric
	upsertErr error
}

func newFakeMetricRepo() *fakeMetricRepo {
	return &fakeMetricRepo{metrics: map[metricKey]*model.HealthMetric{}}
}

func keyFor(userID string, source model.MetricSource, day time.Time) metricKey {
	return metricKey{userID: userID, source: source, day: day.Format("2006-01-02")}
}

func (r *fakeMetricRepo) FindByKey(_ context.Context, userID string, source model.MetricSource, day time.Time) (*model.HealthMetric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[keyFor(userID, source, day)]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeMetricRepo) FindByUserAndRange(_ context.Context, userID string, from, to time.Time) ([]model.HealthMetric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.HealthMetric
	for _, m := range r.metrics {
		if m.UserID == userID && !m.LoggedAt.Before(from) && !m.LoggedAt.After(to) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMetricRepo) Upsert(_ context.Context, params model.UpsertMetricParams) (*model.HealthMetric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}
	k := keyFor(params.UserID, params.Source, params.LoggedAt)
	m, ok := r.metrics[k]
	if !ok {
		m = &model.HealthMetric{
			ID:       fmt.Sprintf("metric-%d", len(r.metrics)+1),
			UserID:   params.UserID,
			Source:   params.Source,
			LoggedAt: params.LoggedAt,
		}
		r.metrics[k] = m
	}
	v := params.Values
	if v.Steps != nil {
		m.Steps = v.Steps
	}
	if v.CaloriesBurned != nil {
		m.CaloriesBurned = v.CaloriesBurned
	}
	if v.ActiveMinutes != nil {
		m.ActiveMinutes = v.ActiveMinutes
	}
	if v.DistanceMeters != nil {
		m.DistanceMeters = v.DistanceMeters
	}
	if v.RestingHeartRate != nil {
		m.RestingHeartRate = v.RestingHeartRate
	}
	if v.HRV != nil {
		m.HRV = v.HRV
	}
	if v.SleepHours != nil {
		m.SleepHours = v.SleepHours
	}
	if v.SleepQuality != nil {
		m.SleepQuality = v.SleepQuality
	}
	if v.SpO2 != nil {
		m.SpO2 = v.SpO2
	}
	if v.StressScore != nil {
		m.StressScore = v.StressScore
	}
	if v.BodyBattery != nil {
		m.BodyBattery = v.BodyBattery
	}
	if v.RawData != nil {
		m.RawData = v.RawData
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMetricRepo) AwardPoints(_ context.Context, userID string, source model.MetricSource, day time.Time, points int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[keyFor(userID, source, day)]
	if !ok || m.PointsAwarded != 0 {
		return false, nil
	}
	m.PointsAwarded = points
	return true, nil
}

func (r *fakeMetricRepo) WithTx(*sqlx.Tx) repository.MetricRepository { return r }

type fakeSyncLogRepo struct {
	mu     sync.Mutex
	events []model.SyncEvent
}

func (r *fakeSyncLogRepo) Create(_ context.Context, params model.CreateSyncEventParams) (*model.SyncEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event := model.SyncEvent{
		ID:        fmt.Sprintf("event-%d", len(r.events)+1),
		UserID:    params.UserID,
		Provider:  params.Provider,
		EventType: params.EventType,
		Detail:    params.Detail,
		CreatedAt: time.Now(),
	}
	r.events = append(r.events, event)
	return &event, nil
}

func (r *fakeSyncLogRepo) FindRecentByUser(_ context.Context, userID string, limit int) ([]model.SyncEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SyncEvent
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].UserID == userID {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

func (r *fakeSyncLogRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []model.SyncEvent
	var removed int64
	for _, e := range r.events {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return removed, nil
}

func (r *fakeSyncLogRepo) eventTypes(userID string) []model.SyncEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SyncEventType
	for _, e := range r.events {
		if e.UserID == userID {
			out = append(out, e.EventType)
		}
	}
	return out
}

type awardCall struct {
	userID string
	source model.MetricSource
	points int
}

type fakeRewarder struct {
	mu      sync.Mutex
	awarded map[metricKey]bool
	awards  []awardCall
	credits map[string]int
}

func newFakeRewarder() *fakeRewarder {
	return &fakeRewarder{awarded: map[metricKey]bool{}, credits: map[string]int{}}
}

func (r *fakeRewarder) AwardDaily(_ context.Context, userID string, source model.MetricSource, day time.Time, points int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := keyFor(userID, source, day)
	if r.awarded[k] {
		return false, nil
	}
	r.awarded[k] = true
	r.awards = append(r.awards, awardCall{userID: userID, source: source, points: points})
	r.credits[userID] += points
	return true, nil
}

func (r *fakeRewarder) Credit(_ context.Context, userID string, points int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credits[userID] += points
	return nil
}

func (r *fakeRewarder) balance(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.credits[userID]
}

type fakeTokenResolver struct {
	mu      sync.Mutex
	byToken map[string]*model.Connection
	removed []string
	puts    map[string]string
}

func newFakeTokenResolver() *fakeTokenResolver {
	return &fakeTokenResolver{byToken: map[string]*model.Connection{}, puts: map[string]string{}}
}

func (t *fakeTokenResolver) Resolve(_ context.Context, _ model.Provider, plainToken string) (*model.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.byToken[plainToken]; ok && c.IsActive {
		return c, nil
	}
	return nil, nil
}

func (t *fakeTokenResolver) Put(_ context.Context, plainToken, connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.puts[plainToken] = connectionID
}

func (t *fakeTokenResolver) Remove(_ context.Context, plainToken string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removed = append(t.removed, plainToken)
	delete(t.byToken, plainToken)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}

type fakeFitbitAPI struct {
	mu          sync.Mutex
	activity    *fitbit.ActivitySummary
	sleep       *fitbit.SleepLog
	heart       *fitbit.HeartSummary
	hrv         *fitbit.HRVSummary
	spo2        *fitbit.SpO2Summary
	activityErr error
	sleepErr    error
	heartErr    error
	hrvErr      error
	spo2Err     error
	failTokens  map[string]error
	refreshed   *fitbit.TokenSet
	refreshErr  error
	refreshes   int
}

func (f *fakeFitbitAPI) tokenErr(accessToken string) error {
	if f.failTokens == nil {
		return nil
	}
	return f.failTokens[accessToken]
}

func (f *fakeFitbitAPI) Refresh(_ context.Context, _ string) (*fitbit.TokenSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshed, nil
}

func (f *fakeFitbitAPI) FetchDailyActivity(_ context.Context, accessToken string, _ time.Time) (*fitbit.ActivitySummary, error) {
	if err := f.tokenErr(accessToken); err != nil {
		return nil, err
	}
	if f.activityErr != nil {
		return nil, f.activityErr
	}
	return f.activity, nil
}

func (f *fakeFitbitAPI) FetchSleep(_ context.Context, accessToken string, _ time.Time) (*fitbit.SleepLog, error) {
	if err := f.tokenErr(accessToken); err != nil {
		return nil, err
	}
	if f.sleepErr != nil {
		return nil, f.sleepErr
	}
	return f.sleep, nil
}

func (f *fakeFitbitAPI) FetchHeartRate(_ context.Context, accessToken string, _ time.Time) (*fitbit.HeartSummary, error) {
	if err := f.tokenErr(accessToken); err != nil {
		return nil, err
	}
	if f.heartErr != nil {
		return nil, f.heartErr
	}
	return f.heart, nil
}

func (f *fakeFitbitAPI) FetchHRV(_ context.Context, accessToken string, _ time.Time) (*fitbit.HRVSummary, error) {
	if err := f.tokenErr(accessToken); err != nil {
		return nil, err
	}
	if f.hrvErr != nil {
		return nil, f.hrvErr
	}
	return f.hrv, nil
}

func (f *fakeFitbitAPI) FetchSpO2(_ context.Context, accessToken string, _ time.Time) (*fitbit.SpO2Summary, error) {
	if err := f.tokenErr(accessToken); err != nil {
		return nil, err
	}
	if f.spo2Err != nil {
		return nil, f.spo2Err
	}
	return f.spo2, nil
}

// fakeFlow lets connection tests script the provider handshake.
type fakeFlow struct {
	provider    model.Provider
	configured  bool
	redirectURL string
	claims      model.StateClaims
	beginErr    error
	creds       *Credentials
	completeErr error
}

func (f *fakeFlow) Provider() model.Provider { return f.provider }
func (f *fakeFlow) Configured() bool         { return f.configured }

func (f *fakeFlow) BeginAuth(context.Context) (string, model.StateClaims, error) {
	if f.beginErr != nil {
		return "", model.StateClaims{}, f.beginErr
	}
	return f.redirectURL, f.claims, nil
}

func (f *fakeFlow) CompleteAuth(_ context.Context, _ *model.StateClaims, _ url.Values) (*Credentials, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.creds, nil
}
