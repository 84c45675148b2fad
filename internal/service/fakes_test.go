package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"auto-order/internal/apperr"
	"auto-order/internal/gateway"
	"auto-order/internal/models"
	"auto-order/internal/store"

	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory stand-in for the Postgres store with the same
// locking and redemption rules.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	orders    map[int64]*models.Order
	vouchers  map[string]*models.Voucher
	products  map[int64]*models.Product
	processed map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		orders:    make(map[int64]*models.Order),
		vouchers:  make(map[string]*models.Voucher),
		products:  make(map[int64]*models.Product),
		processed: make(map[string]bool),
	}
}

func (m *memStore) CreateOrderTx(ctx context.Context, order *models.Order, today time.Time, ref store.ReferenceFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.VoucherCode != nil {
		v, ok := m.vouchers[models.NormalizeVoucherCode(*order.VoucherCode)]
		if !ok || (v.MaxUses > 0 && v.UsedCount >= v.MaxUses) || (v.ExpiresOn != nil && dateOf(today).After(dateOf(*v.ExpiresOn))) {
			return apperr.Validation.New("voucher %s can no longer be used", *order.VoucherCode)
		}
		v.UsedCount++
	}

	m.nextID++
	order.ID = m.nextID
	order.ReferenceID = ref(order)
	order.CreatedAt = today
	order.UpdatedAt = today
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *memStore) find(key store.OrderKey) (*models.Order, error) {
	if key.Reference != "" {
		for _, o := range m.orders {
			if o.ReferenceID == key.Reference {
				return o, nil
			}
		}
		return nil, apperr.NotFound.New("order %s not found", key.Reference)
	}
	o, ok := m.orders[key.ID]
	if !ok {
		return nil, apperr.NotFound.New("order #%d not found", key.ID)
	}
	return o, nil
}

func (m *memStore) UpdateOrderTx(ctx context.Context, key store.OrderKey, mutate func(*models.Order) (bool, error)) (*models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.find(key)
	if err != nil {
		return nil, false, err
	}
	cp := *stored
	changed, err := mutate(&cp)
	if err != nil || !changed {
		out := *stored
		return &out, false, err
	}
	*stored = cp
	out := cp
	return &out, true, nil
}

func (m *memStore) GetOrder(ctx context.Context, key store.OrderKey) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.find(key)
	if err != nil {
		return nil, err
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) sorted(filter func(*models.Order) bool, limit int) []models.Order {
	var out []models.Order
	for _, o := range m.orders {
		if filter(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memStore) ListOrdersByUser(ctx context.Context, userID int64, limit int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(o *models.Order) bool { return o.UserID == userID }, limit), nil
}

func (m *memStore) ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(*models.Order) bool { return true }, limit), nil
}

func (m *memStore) LatestAwaitingProof(ctx context.Context, userID int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.sorted(func(o *models.Order) bool {
		return o.UserID == userID && o.Status == models.StatusWaitingPayment
	}, 1)
	if len(list) == 0 {
		return nil, apperr.NotFound.New("no order is waiting for a payment proof")
	}
	return &list[0], nil
}

func (m *memStore) GetVoucher(ctx context.Context, code string) (*models.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[models.NormalizeVoucherCode(code)]
	if !ok {
		return nil, apperr.NotFound.New("voucher %s not found", code)
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) ListVouchers(ctx context.Context) ([]models.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Voucher
	for _, v := range m.vouchers {
		out = append(out, *v)
	}
	return out, nil
}

func (m *memStore) CreateVoucher(ctx context.Context, v *models.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vouchers[v.Code]; ok {
		return apperr.Validation.New("voucher %s already exists", v.Code)
	}
	cp := *v
	m.vouchers[v.Code] = &cp
	return nil
}

func (m *memStore) DeleteVoucher(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vouchers[code]; !ok {
		return apperr.NotFound.New("voucher %s not found", code)
	}
	delete(m.vouchers, code)
	return nil
}

func (m *memStore) usedCount(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vouchers[code].UsedCount
}

func (m *memStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[eventID], nil
}

func (m *memStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	first := !m.processed[eventID]
	m.processed[eventID] = true
	return first, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) CreatePayment(ctx context.Context, order *models.Order) (*gateway.Payment, error) {
	args := m.Called(ctx, order)
	p, _ := args.Get(0).(*gateway.Payment)
	return p, args.Error(1)
}

func storeByID(id int64) store.OrderKey { return store.ByID(id) }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func (m *memStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, apperr.NotFound.New("product %d not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) listProducts(activeOnly bool, limit int) []models.Product {
	var out []models.Product
	for _, p := range m.products {
		if !activeOnly || p.Active {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memStore) ListActiveProducts(ctx context.Context, limit int) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listProducts(true, limit), nil
}

func (m *memStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listProducts(false, 0), nil
}

func (m *memStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = int64(len(m.products) + 1)
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return apperr.NotFound.New("product %d not found", p.ID)
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memStore) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return apperr.NotFound.New("product %d not found", id)
	}
	delete(m.products, id)
	return nil
}
