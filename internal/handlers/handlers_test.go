package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/tecnm-sys/apiserver/internal/auth"
	"github.com/tecnm-sys/apiserver/internal/metrics"
	"github.com/tecnm-sys/apiserver/internal/services"
	"github.com/tecnm-sys/apiserver/internal/store"
	"github.com/tecnm-sys/apiserver/types"
)

const testSecret = "handlers-test-secret"

type testAPI struct {
	router       *chi.Mux
	tokens       *auth.TokenService
	metrics      *metrics.Metrics
	users        *memUsers
	careers      *memCareers
	institutions *memInstitutions
}

func newTestAPI(t *testing.T, dev bool) *testAPI {
	t.Helper()

	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	api := &testAPI{
		tokens:  tokens,
		metrics: metrics.New(),
		users:   newMemUsers(),
		careers: newMemCareers(),
	}
	api.institutions = newMemInstitutions(api.careers)

	users := services.NewUserService(api.users, auth.NewPasswordHasher(auth.MinHashCost), tokens, services.WithMetrics(api.metrics))
	authz := NewAuthorizer(tokens, api.metrics)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			AuthRouter(r, users, authz, dev)
		})
		r.Route("/careers", func(r chi.Router) {
			CareerRouter(r, services.NewCareerService(api.careers), authz, dev)
		})
		r.Route("/institutions", func(r chi.Router) {
			InstitutionRouter(r, services.NewInstitutionService(api.institutions), authz, dev)
		})
	})
	api.router = router
	return api
}

// token issues a token for a user that need not exist in the repository.
func (a *testAPI) token(t *testing.T, id int, role types.Role) string {
	t.Helper()
	token, err := a.tokens.Issue(auth.Claims{UserID: id, Email: "user@tecnm.mx", Role: role})
	require.NoError(t, err)
	return token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type memUsers struct {
	mu     sync.Mutex
	users  map[int]types.User
	nextID int
	err    error
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[int]types.User), nextID: 1}
}

func (m *memUsers) seed(user types.User) types.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return user
}

func (m *memUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.User{}, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.User{}, m.err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) List(context.Context) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memUsers) EmailInUse(_ context.Context, email string, excludeID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UsernameInUse(_ context.Context, username string, excludeID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) Create(_ context.Context, user types.User) (types.User, error) {
	user.Active = true
	return m.seed(user), nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id int, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	m.users[id] = u
	return nil
}

func (m *memUsers) UpdateRole(_ context.Context, email string, role types.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			u.Role = role
			m.users[id] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memUsers) UpdateProfile(_ context.Context, id int, patch types.ProfilePatch) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Username, patch.Username)
	set(&u.Email, patch.Email)
	set(&u.FullName, patch.FullName)
	set(&u.Phone, patch.Phone)
	set(&u.Institution, patch.Institution)
	if patch.Avatar != nil {
		u.Avatar = patch.Avatar
	}
	m.users[id] = u
	return u, nil
}

type memCareers struct {
	mu      sync.Mutex
	careers map[int]types.Career
	nextID  int
}

func newMemCareers() *memCareers {
	return &memCareers{careers: make(map[int]types.Career), nextID: 1}
}

func (m *memCareers) sorted(keep func(types.Career) bool) []types.Career {
	out := make([]types.Career, 0, len(m.careers))
	for _, c := range m.careers {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memCareers) List(_ context.Context, offset, limit int) ([]types.Career, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(types.Career) bool { return true })
	if offset >= len(all) {
		return []types.Career{}, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (m *memCareers) ListByUser(_ context.Context, userID int) ([]types.Career, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(c types.Career) bool { return c.UserID == userID }), nil
}

func (m *memCareers) ListActive(context.Context) ([]types.Career, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(c types.Career) bool { return c.Active }), nil
}

func (m *memCareers) Get(_ context.Context, id int) (types.Career, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.careers[id]
	if !ok {
		return types.Career{}, store.ErrNotFound
	}
	return c, nil
}

func (m *memCareers) Create(_ context.Context, career types.Career) (types.Career, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	career.ID = m.nextID
	m.nextID++
	if career.RegisteredAt.IsZero() {
		career.RegisteredAt = time.Now()
	}
	m.careers[career.ID] = career
	return career, nil
}

func (m *memCareers) Update(_ context.Context, career types.Career) (types.Career, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.careers[career.ID]; !ok {
		return types.Career{}, store.ErrNotFound
	}
	m.careers[career.ID] = career
	return career, nil
}

func (m *memCareers) UpdateMetrics(_ context.Context, id int, metrics types.CareerMetrics) (types.Career, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.careers[id]
	if !ok {
		return types.Career{}, store.ErrNotFound
	}
	c.ExpectedPopulation = metrics.ExpectedPopulation
	c.ActualPopulation = metrics.ActualPopulation
	m.careers[id] = c
	return c, nil
}

func (m *memCareers) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.careers[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.careers, id)
	return nil
}

type memInstitutions struct {
	mu           sync.Mutex
	careers      *memCareers
	institutions map[int]types.Institution
	nextID       int
}

func newMemInstitutions(careers *memCareers) *memInstitutions {
	return &memInstitutions{careers: careers, institutions: make(map[int]types.Institution), nextID: 1}
}

func (m *memInstitutions) withNames(inst types.Institution) types.Institution {
	inst.CareerNames = []string{}
	for _, id := range inst.CareerIDs {
		if c, err := m.careers.Get(context.Background(), id); err == nil {
			inst.CareerNames = append(inst.CareerNames, c.Name)
		}
	}
	return inst
}

func (m *memInstitutions) List(_ context.Context, offset, limit int) ([]types.Institution, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Institution, 0, len(m.institutions))
	for _, inst := range m.institutions {
		out = append(out, m.withNames(inst))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []types.Institution{}, len(out), nil
	}
	return out[offset:min(offset+limit, len(out))], len(out), nil
}

func (m *memInstitutions) ListByUser(_ context.Context, userID int) ([]types.Institution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.Institution{}
	for _, inst := range m.institutions {
		if inst.UserID == userID {
			out = append(out, m.withNames(inst))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memInstitutions) Get(_ context.Context, id int) (types.Institution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.institutions[id]
	if !ok {
		return types.Institution{}, store.ErrNotFound
	}
	return m.withNames(inst), nil
}

func (m *memInstitutions) CCTInUse(_ context.Context, cct string, excludeID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.institutions {
		if inst.CCT == cct && inst.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memInstitutions) Create(_ context.Context, inst types.Institution) (types.Institution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range inst.CareerIDs {
		if _, err := m.careers.Get(context.Background(), id); err != nil {
			return types.Institution{}, store.ErrInvalidReference
		}
	}
	inst.ID = m.nextID
	m.nextID++
	m.institutions[inst.ID] = inst
	return inst, nil
}

func (m *memInstitutions) Update(_ context.Context, inst types.Institution, replaceLinks bool) (types.Institution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.institutions[inst.ID]
	if !ok {
		return types.Institution{}, store.ErrNotFound
	}
	if !replaceLinks {
		inst.CareerIDs = current.CareerIDs
	}
	m.institutions[inst.ID] = inst
	return inst, nil
}

func (m *memInstitutions) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.institutions[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.institutions, id)
	return nil
}

var errDatabaseDown = errors.New("connection refused")

func newRequest(method, path, authorization string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func serve(api *testAPI, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}
