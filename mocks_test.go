package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-storeauth"
	"github.com/goliatone/go-storeauth/middleware/ratelimit"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
)

func testOptions() auth.Options {
	opts := auth.DefaultOptions()
	opts.AccessSecret = testAccessSecret
	opts.RefreshSecret = testRefreshSecret
	opts.CookieSecure = false
	return opts
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memUsers implements auth.CredentialStore
type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*auth.User
	now   auth.Clock
}

func newMemUsers(now auth.Clock) *memUsers {
	return &memUsers{users: map[uuid.UUID]*auth.User{}, now: now}
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	return &c
}

func (m *memUsers) FindByName(_ context.Context, name string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.DeletedAt == nil && u.Username == name {
			return cloneUser(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok || u.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *memUsers) Create(_ context.Context, user *auth.User) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.DeletedAt == nil && u.Username == user.Username {
			return nil, auth.ErrConflict
		}
	}
	stored := cloneUser(user)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := m.now()
	stored.CreatedAt = &now
	stored.UpdatedAt = &now
	m.users[stored.ID] = stored
	return cloneUser(stored), nil
}

func (m *memUsers) UpdateByID(_ context.Context, id string, patch auth.UserPatch) (*auth.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok || u.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Profile != nil {
		u.Profile = *patch.Profile
	}
	if patch.LoggedInAt != nil {
		at := *patch.LoggedInAt
		u.LoggedInAt = &at
	}
	now := m.now()
	u.UpdatedAt = &now
	return cloneUser(u), nil
}

func (m *memUsers) AssignOwner(_ context.Context, id string) (*auth.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok || u.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	for _, other := range m.users {
		if other.DeletedAt == nil && other.Role == auth.RoleOwner {
			return nil, auth.ErrConflict
		}
	}
	u.Role = auth.RoleOwner
	now := m.now()
	u.UpdatedAt = &now
	return cloneUser(u), nil
}

// blindCount reports no users for any role, leaving the single owner rule
// to the conditional write.
type blindCount struct {
	*memUsers
}

func (blindCount) CountByRole(context.Context, auth.UserRole) (int, error) { return 0, nil }

func (m *memUsers) CountByRole(_ context.Context, role auth.UserRole) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.users {
		if u.DeletedAt == nil && u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *memUsers) SoftDelete(_ context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return auth.ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok || u.DeletedAt != nil {
		return auth.ErrNotFound
	}
	now := m.now()
	u.DeletedAt = &now
	return nil
}

func (m *memUsers) hash(t *testing.T, id uuid.UUID) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	require.True(t, ok, "user %s not stored", id)
	return u.PasswordHash
}

func (m *memUsers) snapshot() map[uuid.UUID]auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]auth.User, len(m.users))
	for id, u := range m.users {
		out[id] = *u
	}
	return out
}

func (m *memUsers) restore(snap map[uuid.UUID]auth.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[uuid.UUID]*auth.User, len(snap))
	for id, u := range snap {
		u := u
		m.users[id] = &u
	}
}

// memLedger implements auth.RevocationLedger
type memLedger struct {
	mu      sync.Mutex
	entries map[string]auth.RevokedToken
	now     auth.Clock
	err     error
	lookups int
}

func newMemLedger(now auth.Clock) *memLedger {
	return &memLedger{entries: map[string]auth.RevokedToken{}, now: now}
}

func (l *memLedger) Exists(_ context.Context, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookups++
	if l.err != nil {
		return false, l.err
	}
	entry, ok := l.entries[token]
	return ok && l.now().Before(entry.ExpiresAt), nil
}

func (l *memLedger) InsertIfAbsent(_ context.Context, entry *auth.RevokedToken) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if _, ok := l.entries[entry.Token]; ok {
		return false, nil
	}
	l.entries[entry.Token] = *entry
	return true, nil
}

func (l *memLedger) Reap(_ context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	var n int64
	for token, entry := range l.entries {
		if entry.ExpiresAt.Before(before) {
			delete(l.entries, token)
			n++
		}
	}
	return n, nil
}

func (l *memLedger) entry(token string) (auth.RevokedToken, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[token]
	return entry, ok
}

func (l *memLedger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *memLedger) lookupCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookups
}

// memResets implements auth.ResetStore
type memResets struct {
	mu   sync.Mutex
	reqs map[uuid.UUID]*auth.PasswordResetRequest
}

func newMemResets() *memResets {
	return &memResets{reqs: map[uuid.UUID]*auth.PasswordResetRequest{}}
}

func cloneReset(r *auth.PasswordResetRequest) *auth.PasswordResetRequest {
	c := *r
	return &c
}

func (m *memResets) CreatePending(_ context.Context, req *auth.PasswordResetRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reqs {
		if r.UserID == req.UserID && r.Status == auth.ResetPending {
			return auth.ErrConflict
		}
	}
	m.reqs[req.ID] = cloneReset(req)
	return nil
}

func (m *memResets) HasPending(_ context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reqs {
		if r.UserID == userID && r.Status == auth.ResetPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memResets) FindByID(_ context.Context, id uuid.UUID) (*auth.PasswordResetRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneReset(r), nil
}

func (m *memResets) ListPending(_ context.Context) ([]*auth.PasswordResetRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*auth.PasswordResetRequest, 0, len(m.reqs))
	for _, r := range m.reqs {
		if r.Status == auth.ResetPending {
			out = append(out, cloneReset(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

func (m *memResets) Complete(_ context.Context, id, ownerID uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok || r.Status != auth.ResetPending {
		return false, nil
	}
	r.Status = auth.ResetCompleted
	r.CompletedAt = &at
	r.CompletedBy = &ownerID
	return true, nil
}

// staleResets always reports requests as pending, like a reader that lost
// the race against a concurrent approval.
type staleResets struct {
	*memResets
}

func (s staleResets) FindByID(ctx context.Context, id uuid.UUID) (*auth.PasswordResetRequest, error) {
	r, err := s.memResets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Status = auth.ResetPending
	return r, nil
}

// memAudit implements auth.AuditStore
type memAudit struct {
	mu      sync.Mutex
	entries []*auth.AuditLogEntry
	err     error
	panics  bool
}

func (m *memAudit) Append(_ context.Context, entry *auth.AuditLogEntry) error {
	if m.panics {
		panic("audit store exploded")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	c := *entry
	m.entries = append(m.entries, &c)
	return nil
}

func (m *memAudit) Query(_ context.Context, filter auth.AuditFilter, page auth.Page) ([]*auth.AuditLogEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]*auth.AuditLogEntry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.PerformedBy != "" && e.PerformedBy != filter.PerformedBy {
			continue
		}
		if filter.TargetUser != "" && e.TargetUser != filter.TargetUser {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	if page.Offset >= total {
		return []*auth.AuditLogEntry{}, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return matched[page.Offset:end], total, nil
}

func (m *memAudit) list() []*auth.AuditLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*auth.AuditLogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *memAudit) byAction(action auth.AuditAction) []*auth.AuditLogEntry {
	var out []*auth.AuditLogEntry
	for _, e := range m.list() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// memTx rolls the in-memory users back when fn fails.
type memTx struct {
	users *memUsers
	runs  int
}

func (t *memTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.runs++
	snap := t.users.snapshot()
	if err := fn(ctx); err != nil {
		t.users.restore(snap)
		return err
	}
	return nil
}

// recordingSink captures activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count(eventType auth.ActivityEventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func (s *recordingSink) last(eventType auth.ActivityEventType) (auth.ActivityEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].EventType == eventType {
			return s.events[i], true
		}
	}
	return auth.ActivityEvent{}, false
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type fixture struct {
	clock   *testClock
	users   *memUsers
	ledger  *memLedger
	resets  *memResets
	audit   *memAudit
	tx      *memTx
	sink    *recordingSink
	hasher  auth.PasswordHasher
	service *auth.Service
}

func newFixture(t *testing.T, mutate ...func(*auth.Options)) *fixture {
	t.Helper()

	clock := newTestClock()
	users := newMemUsers(clock.Now)
	f := &fixture{
		clock:  clock,
		users:  users,
		ledger: newMemLedger(clock.Now),
		resets: newMemResets(),
		audit:  &memAudit{},
		tx:     &memTx{users: users},
		sink:   &recordingSink{},
		hasher: auth.NewBcryptHasher(bcrypt.MinCost),
	}

	opts := testOptions()
	for _, fn := range mutate {
		fn(&opts)
	}

	service, err := auth.NewService(opts, f.stores(),
		auth.WithServiceLogger(nopLogger{}),
		auth.WithServiceActivitySink(f.sink),
		auth.WithServiceHasher(f.hasher),
		auth.WithServiceClock(clock.Now),
	)
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *fixture) stores() auth.Stores {
	return auth.Stores{
		Users:  f.users,
		Ledger: f.ledger,
		Resets: f.resets,
		Audit:  f.audit,
		Tx:     f.tx,
	}
}

func (f *fixture) seed(t *testing.T, name, password string, role auth.UserRole) *auth.User {
	t.Helper()
	hash, err := f.hasher.HashPassword(password)
	require.NoError(t, err)
	user, err := f.users.Create(context.Background(), &auth.User{
		Username:     name,
		PasswordHash: hash,
		Role:         role,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) issuer() *auth.TokenIssuer {
	return f.service.Issuer()
}

// fakeContext implements the parts of router.Context the handlers touch.
type fakeContext struct {
	router.Context
	headers    map[string]string
	cookies    map[string]string
	setCookies map[string]*router.Cookie
	query      map[string]string
	params     map[string]string
	locals     map[any]any
	ctx        context.Context
	reqBody    []byte
	status     int
	body       []byte
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		headers:    map[string]string{},
		cookies:    map[string]string{},
		setCookies: map[string]*router.Cookie{},
		query:      map[string]string{},
		params:     map[string]string{},
		locals:     map[any]any{ratelimit.ClientIPKey: "10.0.0.1"},
		ctx:        context.Background(),
	}
}

func jsonRequest(t *testing.T, payload any) *fakeContext {
	t.Helper()
	f := newFakeContext()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	f.reqBody = body
	return f
}

func (f *fakeContext) Header(key string) string { return f.headers[key] }

func (f *fakeContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := f.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (f *fakeContext) Cookie(cookie *router.Cookie) {
	f.setCookies[cookie.Name] = cookie
}

func (f *fakeContext) Query(key, defaultValue string) string {
	if v, ok := f.query[key]; ok {
		return v
	}
	return defaultValue
}

func (f *fakeContext) QueryInt(key string, defaultValue int) int {
	if v, ok := f.query[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func (f *fakeContext) Param(key string, defaultValue ...string) string {
	if v, ok := f.params[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (f *fakeContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		f.locals[key] = value[0]
		return value[0]
	}
	return f.locals[key]
}

func (f *fakeContext) Context() context.Context      { return f.ctx }
func (f *fakeContext) SetContext(ctx context.Context) { f.ctx = ctx }
func (f *fakeContext) OriginalURL() string            { return "/test" }

func (f *fakeContext) Bind(v any) error {
	if len(f.reqBody) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(f.reqBody, v)
}

func (f *fakeContext) Status(code int) router.Context {
	f.status = code
	return f
}

func (f *fakeContext) JSON(code int, v any) error {
	f.status = code
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.body = body
	return nil
}

func (f *fakeContext) NoContent(code int) error {
	f.status = code
	return nil
}

func (f *fakeContext) SendString(s string) error {
	f.body = []byte(s)
	return nil
}

func (f *fakeContext) decode(t *testing.T) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(f.body, &out))
	return out
}

func (f *fakeContext) errorCode(t *testing.T) string {
	t.Helper()
	var resp auth.ErrorResponse
	require.NoError(t, json.Unmarshal(f.body, &resp))
	return resp.Error.Code
}
