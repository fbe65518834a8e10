package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/tecnm-sys/apiserver/internal/storage"
	"github.com/tecnm-sys/apiserver/internal/store"
	"github.com/tecnm-sys/apiserver/types"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int]types.User
	nextID int

	createErr         error
	updatePasswordErr error
}

func newFakeUserRepo(users ...types.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int]types.User), nextID: 1}
	for _, u := range users {
		r.users[u.ID] = u
		if u.ID >= r.nextID {
			r.nextID = u.ID + 1
		}
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) List(context.Context) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]types.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (r *fakeUserRepo) EmailInUse(_ context.Context, email string, excludeID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) UsernameInUse(_ context.Context, username string, excludeID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return types.User{}, r.createErr
	}
	user.ID = r.nextID
	user.Active = true
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updatePasswordErr != nil {
		return r.updatePasswordErr
	}
	u, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, email string, role types.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			u.Role = role
			r.users[id] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, id int, patch types.ProfilePatch) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.FullName != nil {
		u.FullName = *patch.FullName
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.Institution != nil {
		u.Institution = *patch.Institution
	}
	if patch.Avatar != nil {
		avatar := *patch.Avatar
		u.Avatar = &avatar
	}
	r.users[id] = u
	return u, nil
}

func (r *fakeUserRepo) password(id int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id].Password
}

type publishedEvent struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{channel: channel, data: data, attrs: attrs})
	if p.err != nil {
		return "", p.err
	}
	return "msg", nil
}

func (p *fakePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.attrs["type"])
	}
	return out
}

type storedObject struct {
	data        []byte
	contentType string
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string]storedObject
	deleted []string
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string]storedObject)}
}

func (s *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = storedObject{data: data, contentType: contentType}
	return nil
}

func (s *fakeObjectStore) Get(_ context.Context, key string) (*storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.Object{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
	}, nil
}

func (s *fakeObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return errors.New("no such key")
	}
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type fakeCareerRepo struct {
	careers map[int]types.Career
	nextID  int
}

func newFakeCareerRepo(careers ...types.Career) *fakeCareerRepo {
	r := &fakeCareerRepo{careers: make(map[int]types.Career), nextID: 1}
	for _, c := range careers {
		r.careers[c.ID] = c
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
	}
	return r
}

func (r *fakeCareerRepo) sorted(keep func(types.Career) bool) []types.Career {
	out := make([]types.Career, 0)
	for _, c := range r.careers {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeCareerRepo) List(_ context.Context, offset, limit int) ([]types.Career, int, error) {
	all := r.sorted(func(types.Career) bool { return true })
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *fakeCareerRepo) ListByUser(_ context.Context, userID int) ([]types.Career, error) {
	return r.sorted(func(c types.Career) bool { return c.UserID == userID }), nil
}

func (r *fakeCareerRepo) ListActive(context.Context) ([]types.Career, error) {
	return r.sorted(func(c types.Career) bool { return c.Active }), nil
}

func (r *fakeCareerRepo) Get(_ context.Context, id int) (types.Career, error) {
	c, ok := r.careers[id]
	if !ok {
		return types.Career{}, store.ErrNotFound
	}
	return c, nil
}

func (r *fakeCareerRepo) Create(_ context.Context, career types.Career) (types.Career, error) {
	career.ID = r.nextID
	r.nextID++
	r.careers[career.ID] = career
	return career, nil
}

func (r *fakeCareerRepo) Update(_ context.Context, career types.Career) (types.Career, error) {
	if _, ok := r.careers[career.ID]; !ok {
		return types.Career{}, store.ErrNotFound
	}
	r.careers[career.ID] = career
	return career, nil
}

func (r *fakeCareerRepo) UpdateMetrics(_ context.Context, id int, metrics types.CareerMetrics) (types.Career, error) {
	c, ok := r.careers[id]
	if !ok {
		return types.Career{}, store.ErrNotFound
	}
	c.ExpectedPopulation = metrics.ExpectedPopulation
	c.ActualPopulation = metrics.ActualPopulation
	r.careers[id] = c
	return c, nil
}

func (r *fakeCareerRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.careers[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.careers, id)
	return nil
}

type fakeInstitutionRepo struct {
	institutions map[int]types.Institution
	careers      *fakeCareerRepo
	nextID       int
}

func newFakeInstitutionRepo(careers *fakeCareerRepo, institutions ...types.Institution) *fakeInstitutionRepo {
	r := &fakeInstitutionRepo{institutions: make(map[int]types.Institution), careers: careers, nextID: 1}
	for _, inst := range institutions {
		r.institutions[inst.ID] = inst
		if inst.ID >= r.nextID {
			r.nextID = inst.ID + 1
		}
	}
	return r
}

func (r *fakeInstitutionRepo) withNames(inst types.Institution) types.Institution {
	inst.CareerNames = []string{}
	for _, id := range inst.CareerIDs {
		if c, ok := r.careers.careers[id]; ok {
			inst.CareerNames = append(inst.CareerNames, c.Name)
		}
	}
	return inst
}

func (r *fakeInstitutionRepo) List(_ context.Context, offset, limit int) ([]types.Institution, int, error) {
	out := make([]types.Institution, 0)
	for _, inst := range r.institutions {
		out = append(out, r.withNames(inst))
	}
	return out, len(out), nil
}

func (r *fakeInstitutionRepo) ListByUser(_ context.Context, userID int) ([]types.Institution, error) {
	out := make([]types.Institution, 0)
	for _, inst := range r.institutions {
		if inst.UserID == userID {
			out = append(out, r.withNames(inst))
		}
	}
	return out, nil
}

func (r *fakeInstitutionRepo) Get(_ context.Context, id int) (types.Institution, error) {
	inst, ok := r.institutions[id]
	if !ok {
		return types.Institution{}, store.ErrNotFound
	}
	return r.withNames(inst), nil
}

func (r *fakeInstitutionRepo) CCTInUse(_ context.Context, cct string, excludeID int) (bool, error) {
	for _, inst := range r.institutions {
		if inst.CCT == cct && inst.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeInstitutionRepo) checkLinks(ids []int) error {
	for _, id := range ids {
		if _, ok := r.careers.careers[id]; !ok {
			return store.ErrInvalidReference
		}
	}
	return nil
}

func (r *fakeInstitutionRepo) Create(_ context.Context, inst types.Institution) (types.Institution, error) {
	if err := r.checkLinks(inst.CareerIDs); err != nil {
		return types.Institution{}, err
	}
	inst.ID = r.nextID
	r.nextID++
	r.institutions[inst.ID] = inst
	return inst, nil
}

func (r *fakeInstitutionRepo) Update(_ context.Context, inst types.Institution, replaceLinks bool) (types.Institution, error) {
	current, ok := r.institutions[inst.ID]
	if !ok {
		return types.Institution{}, store.ErrNotFound
	}
	if replaceLinks {
		if err := r.checkLinks(inst.CareerIDs); err != nil {
			return types.Institution{}, err
		}
	} else {
		inst.CareerIDs = current.CareerIDs
	}
	r.institutions[inst.ID] = inst
	return inst, nil
}

func (r *fakeInstitutionRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.institutions[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.institutions, id)
	return nil
}
