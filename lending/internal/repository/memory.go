package repository

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/model"
)

// memory is a single-process Repository. Atomic holds the store lock for
// the whole callback, so transactions are fully serialized.
type memory struct {
	mu  sync.Mutex
	now func() time.Time

	equipment map[int64]model.Equipment
	requests  map[int64]model.BorrowRequest
	users     map[int64]model.User
	emails    map[string]int64

	equipmentSeq int64
	requestSeq   int64
	userSeq      int64
}

func NewMemory() *memory {
	return &memory{
		now:       func() time.Time { return time.Now().UTC() },
		equipment: make(map[int64]model.Equipment),
		requests:  make(map[int64]model.BorrowRequest),
		users:     make(map[int64]model.User),
		emails:    make(map[string]int64),
	}
}

func (m *memory) CreateEquipment(_ context.Context, req model.CreateEquipmentRequest) (model.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.equipmentSeq++
	now := m.now()
	item := model.Equipment{
		ID:                m.equipmentSeq,
		Name:              req.Name,
		Category:          req.Category,
		Condition:         req.Condition,
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: req.TotalQuantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.equipment[item.ID] = item
	return item, nil
}

func (m *memory) GetEquipment(_ context.Context, id int64) (model.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.equipment[id]
	if !ok {
		return model.Equipment{}, errs.ErrNotFound
	}
	return item, nil
}

func (m *memory) UpdateEquipment(_ context.Context, id int64, req model.UpdateEquipmentRequest) (model.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.equipment[id]
	if !ok {
		return model.Equipment{}, errs.ErrNotFound
	}
	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.Condition != nil {
		item.Condition = *req.Condition
	}
	if req.TotalQuantity != nil {
		item.TotalQuantity = *req.TotalQuantity
		item.AvailableQuantity = *req.TotalQuantity
	}
	item.UpdatedAt = m.now()
	m.equipment[id] = item
	return item, nil
}

func (m *memory) DeleteEquipment(_ context.Context, id int64, onlyIdle bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.equipment[id]; !ok {
		return errs.ErrNotFound
	}
	if onlyIdle {
		for _, r := range m.requests {
			if r.EquipmentID == id && r.Status.Active() {
				return errs.ErrConflict
			}
		}
	}
	delete(m.equipment, id)
	return nil
}

func (m *memory) SearchEquipment(_ context.Context, q model.EquipmentQuery) iter.Seq2[model.Equipment, error] {
	return func(yield func(model.Equipment, error) bool) {
		m.mu.Lock()
		items := make([]model.Equipment, 0, len(m.equipment))
		for _, e := range m.equipment {
			if q.Matches(e) {
				items = append(items, e)
			}
		}
		m.mu.Unlock()

		slices.SortFunc(items, func(a, b model.Equipment) int {
			if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		for _, e := range items {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *memory) CreateRequest(_ context.Context, userID, equipmentID int64, period model.Period) (model.BorrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !period.Valid() {
		return model.BorrowRequest{}, errs.ErrValidation
	}
	if _, ok := m.equipment[equipmentID]; !ok {
		return model.BorrowRequest{}, errs.ErrReference
	}
	m.requestSeq++
	now := m.now()
	req := model.BorrowRequest{
		ID:          m.requestSeq,
		UserID:      userID,
		EquipmentID: equipmentID,
		Status:      model.StatusRequested,
		BorrowDate:  period.From,
		ReturnDate:  period.To,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.requests[req.ID] = req
	return req, nil
}

func (m *memory) GetRequest(_ context.Context, id int64) (model.BorrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return model.BorrowRequest{}, errs.ErrNotFound
	}
	return req, nil
}

func (m *memory) ListRequestsByUser(_ context.Context, userID int64) ([]model.BorrowRequestView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.views(func(r model.BorrowRequest) bool { return r.UserID == userID }, false), nil
}

func (m *memory) ListRequests(_ context.Context) ([]model.BorrowRequestView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.views(func(model.BorrowRequest) bool { return true }, true), nil
}

// views must be called with mu held.
func (m *memory) views(keep func(model.BorrowRequest) bool, withUser bool) []model.BorrowRequestView {
	out := make([]model.BorrowRequestView, 0)
	for _, r := range m.requests {
		if !keep(r) {
			continue
		}
		v := model.BorrowRequestView{BorrowRequest: r}
		if e, ok := m.equipment[r.EquipmentID]; ok {
			v.Equipment = &e
		}
		if u, ok := m.users[r.UserID]; ok && withUser {
			v.User = &model.Requester{Name: u.Name, Role: u.Role}
		}
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b model.BorrowRequestView) int {
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (m *memory) CreateUser(_ context.Context, user model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := m.emails[email]; ok {
		return model.User{}, errs.ErrEmailTaken
	}
	m.userSeq++
	user.ID = m.userSeq
	user.Email = email
	user.CreatedAt = m.now()
	m.users[user.ID] = user
	m.emails[email] = user.ID
	return user, nil
}

func (m *memory) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return m.users[id], nil
}

func (m *memory) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{m: m, staged: make(map[int64]model.BorrowRequest)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, r := range tx.staged {
		m.requests[id] = r
	}
	return nil
}

// memTx buffers status writes until the callback returns without error.
type memTx struct {
	m      *memory
	staged map[int64]model.BorrowRequest
}

func (t *memTx) request(id int64) (model.BorrowRequest, bool) {
	if r, ok := t.staged[id]; ok {
		return r, true
	}
	r, ok := t.m.requests[id]
	return r, ok
}

func (t *memTx) LockRequest(_ context.Context, id int64) (model.BorrowRequest, error) {
	r, ok := t.request(id)
	if !ok {
		return model.BorrowRequest{}, errs.ErrNotFound
	}
	return r, nil
}

func (t *memTx) LockEquipment(_ context.Context, id int64) (model.Equipment, error) {
	e, ok := t.m.equipment[id]
	if !ok {
		return model.Equipment{}, errs.ErrNotFound
	}
	return e, nil
}

func (t *memTx) CountOverlapping(_ context.Context, equipmentID, excludeID int64, period model.Period) (int, error) {
	n := 0
	for id := range t.m.requests {
		r, _ := t.request(id)
		if r.ID == excludeID || r.EquipmentID != equipmentID || r.Status != model.StatusApproved {
			continue
		}
		if r.Period().Overlaps(period) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) SetStatus(_ context.Context, id int64, status model.Status) (model.BorrowRequest, error) {
	r, ok := t.request(id)
	if !ok {
		return model.BorrowRequest{}, errs.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = t.m.now()
	t.staged[id] = r
	return r, nil
}
