package bot

import (
	"context"
	"sync"

	"auto-order/internal/apperr"
	"auto-order/internal/checkout"
	"auto-order/internal/models"
	"auto-order/internal/service"

	"github.com/stretchr/testify/mock"
)

type sent struct {
	kind      string
	chatID    int64
	messageID int
	text      string
	fileID    string
	kb        Keyboard
}

type recordingSender struct {
	mu       sync.Mutex
	messages []sent
	answers  []string
	editErr  error
}

func (s *recordingSender) SendText(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sent{kind: "text", chatID: chatID, text: text, kb: kb})
	return nil
}

func (s *recordingSender) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb Keyboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sent{kind: "photo", chatID: chatID, text: caption, fileID: fileID, kb: kb})
	return nil
}

func (s *recordingSender) EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editErr != nil {
		return s.editErr
	}
	s.messages = append(s.messages, sent{kind: "edit", chatID: chatID, messageID: messageID, text: text, kb: kb})
	return nil
}

func (s *recordingSender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, text)
	return nil
}

func (s *recordingSender) last() sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return sent{}
	}
	return s.messages[len(s.messages)-1]
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (kb Keyboard) data() []string {
	var out []string
	for _, row := range kb {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

type fakeProducts map[int64]*models.Product

func (f fakeProducts) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, apperr.NotFound.New("product %d not found", id)
	}
	return p, nil
}

type mockValidator struct{ mock.Mock }

func (m *mockValidator) Validate(ctx context.Context, code string, subtotal int64) (int64, error) {
	args := m.Called(ctx, code, subtotal)
	return args.Get(0).(int64), args.Error(1)
}

type mockCommitter struct{ mock.Mock }

func (m *mockCommitter) CommitOrder(ctx context.Context, req checkout.CommitRequest) (*models.Order, error) {
	args := m.Called(ctx, req)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) Catalog(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Product)
	return list, args.Error(1)
}

func (m *mockCatalog) AdminProducts(ctx context.Context, actorID int64) ([]models.Product, error) {
	args := m.Called(ctx, actorID)
	list, _ := args.Get(0).([]models.Product)
	return list, args.Error(1)
}

func (m *mockCatalog) AddProduct(ctx context.Context, actorID int64, p *models.Product) error {
	args := m.Called(ctx, actorID, p)
	if args.Error(0) == nil {
		p.ID = 5
	}
	return args.Error(0)
}

func (m *mockCatalog) EditProduct(ctx context.Context, actorID int64, p *models.Product) error {
	return m.Called(ctx, actorID, p).Error(0)
}

func (m *mockCatalog) RemoveProduct(ctx context.Context, actorID, productID int64) error {
	return m.Called(ctx, actorID, productID).Error(0)
}

type mockOrders struct{ mock.Mock }

func (m *mockOrders) UserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]models.Order)
	return list, args.Error(1)
}

func (m *mockOrders) GetOrder(ctx context.Context, actorID, orderID int64) (*models.Order, error) {
	args := m.Called(ctx, actorID, orderID)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockOrders) RecentOrders(ctx context.Context, actorID int64) ([]models.Order, error) {
	args := m.Called(ctx, actorID)
	list, _ := args.Get(0).([]models.Order)
	return list, args.Error(1)
}

func (m *mockOrders) SubmitProof(ctx context.Context, userID int64, fileID, caption string) (*models.Order, bool, error) {
	args := m.Called(ctx, userID, fileID, caption)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Bool(1), args.Error(2)
}

func (m *mockOrders) ApplyAdminDecision(ctx context.Context, actorID, orderID int64, decision service.Decision, note string) (*models.Order, bool, error) {
	args := m.Called(ctx, actorID, orderID, decision, note)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Bool(1), args.Error(2)
}

type mockVoucherAdmin struct{ mock.Mock }

func (m *mockVoucherAdmin) Vouchers(ctx context.Context, actorID int64) ([]models.Voucher, error) {
	args := m.Called(ctx, actorID)
	list, _ := args.Get(0).([]models.Voucher)
	return list, args.Error(1)
}

func (m *mockVoucherAdmin) AddVoucher(ctx context.Context, actorID int64, v *models.Voucher) error {
	return m.Called(ctx, actorID, v).Error(0)
}

func (m *mockVoucherAdmin) RemoveVoucher(ctx context.Context, actorID int64, code string) error {
	return m.Called(ctx, actorID, code).Error(0)
}
