package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"auto-order/internal/apperr"
	"auto-order/internal/checkout"
	"auto-order/internal/models"
	"auto-order/internal/service"
	"auto-order/internal/util"
)

// Catalog is the product side the router needs
type Catalog interface {
	Catalog(ctx context.Context) ([]models.Product, error)
	AdminProducts(ctx context.Context, actorID int64) ([]models.Product, error)
	AddProduct(ctx context.Context, actorID int64, p *models.Product) error
	EditProduct(ctx context.Context, actorID int64, p *models.Product) error
	RemoveProduct(ctx context.Context, actorID, productID int64) error
}

// Orders is the order side the router needs
type Orders interface {
	UserOrders(ctx context.Context, userID int64) ([]models.Order, error)
	GetOrder(ctx context.Context, actorID, orderID int64) (*models.Order, error)
	RecentOrders(ctx context.Context, actorID int64) ([]models.Order, error)
	SubmitProof(ctx context.Context, userID int64, fileID, caption string) (*models.Order, bool, error)
	ApplyAdminDecision(ctx context.Context, actorID, orderID int64, decision service.Decision, note string) (*models.Order, bool, error)
}

// Vouchers is the voucher admin side the router needs
type Vouchers interface {
	Vouchers(ctx context.Context, actorID int64) ([]models.Voucher, error)
	AddVoucher(ctx context.Context, actorID int64, v *models.Voucher) error
	RemoveVoucher(ctx context.Context, actorID int64, code string) error
}

// RouterConfig holds the texts and zone the router renders with
type RouterConfig struct {
	ManualInstructions string
	Location           *time.Location
}

// Router dispatches chat events to the services and renders the replies
type Router struct {
	checkout *checkout.Service
	catalog  Catalog
	orders   Orders
	vouchers Vouchers
	auth     *service.Authorizer
	sender   Sender
	limiter  *Limiter
	cfg      RouterConfig
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewRouter creates a new router
func NewRouter(
	co *checkout.Service,
	catalog Catalog,
	orders Orders,
	vouchers Vouchers,
	auth *service.Authorizer,
	sender Sender,
	limiter *Limiter,
	cfg RouterConfig,
) *Router {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Router{
		checkout: co,
		catalog:  catalog,
		orders:   orders,
		vouchers: vouchers,
		auth:     auth,
		sender:   sender,
		limiter:  limiter,
		cfg:      cfg,
		logger:   util.GetLogger(),
	}
}

// Run handles events until the channel closes, then waits for in-flight
// handlers. Events run concurrently; per-user ordering is kept by the
// checkout session lock.
func (r *Router) Run(ctx context.Context, events <-chan Event) {
	r.logger.Info("Chat router started")
	for ev := range events {
		ev := ev
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.Handle(ctx, ev)
		}()
	}
	r.wg.Wait()
	r.logger.Info("Chat router stopped")
}

// Handle processes one chat event
func (r *Router) Handle(ctx context.Context, ev Event) {
	ctx, span := util.StartSpan(ctx, "Router.Handle")
	defer span.End()

	util.ChatUpdatesTotal.WithLabelValues(ev.Kind.String()).Inc()
	if r.limiter != nil && !r.limiter.Allow(ev.UserID) {
		util.ChatUpdatesThrottledTotal.Inc()
		if ev.Kind == EventCallback {
			r.answer(ctx, ev, "Too many requests, slow down a little.")
		}
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Chat handler panicked", zap.Any("panic", rec), zap.Int64("user_id", ev.UserID))
		}
	}()

	switch ev.Kind {
	case EventCommand:
		r.handleCommand(ctx, ev)
	case EventCallback:
		r.handleCallback(ctx, ev)
	case EventText:
		r.handleText(ctx, ev)
	case EventPhoto:
		r.handlePhoto(ctx, ev)
	}
}

func (r *Router) handleCommand(ctx context.Context, ev Event) {
	switch ev.Command {
	case "start":
		text, kb := menuView(r.auth.IsAdmin(ev.UserID))
		r.reply(ctx, ev, text, kb)
	case "cancel":
		if err := r.checkout.Cancel(ctx, ev.UserID); err != nil {
			r.fail(ctx, ev, err)
			return
		}
		r.reply(ctx, ev, "Checkout cancelled.", nil)
	case "addprod":
		p, err := ParseAddProduct(ev.Args)
		if err == nil {
			err = r.catalog.AddProduct(ctx, ev.UserID, p)
		}
		r.done(ctx, ev, err, func() string { return "Product #" + strconv.FormatInt(p.ID, 10) + " added." })
	case "setprod":
		p, err := ParseSetProduct(ev.Args)
		if err == nil {
			err = r.catalog.EditProduct(ctx, ev.UserID, p)
		}
		r.done(ctx, ev, err, func() string { return "Product #" + strconv.FormatInt(p.ID, 10) + " updated." })
	case "delprod":
		id, err := parseID(ev.Args)
		if err == nil {
			err = r.catalog.RemoveProduct(ctx, ev.UserID, id)
		}
		r.done(ctx, ev, err, func() string { return "Product #" + strconv.FormatInt(id, 10) + " deleted." })
	case "addvoucher":
		v, err := ParseAddVoucher(ev.Args, r.cfg.Location)
		if err == nil {
			err = r.vouchers.AddVoucher(ctx, ev.UserID, v)
		}
		r.done(ctx, ev, err, func() string { return "Voucher " + v.Code + " added." })
	case "delvoucher":
		code := strings.TrimSpace(ev.Args)
		err := r.vouchers.RemoveVoucher(ctx, ev.UserID, code)
		r.done(ctx, ev, err, func() string { return "Voucher " + models.NormalizeVoucherCode(code) + " deleted." })
	case "vouchers":
		r.showVouchers(ctx, ev)
	case "order":
		r.showOrder(ctx, ev, ev.Args)
	default:
		r.reply(ctx, ev, "Unknown command. Use /start to open the menu.", nil)
	}
}

func (r *Router) handleCallback(ctx context.Context, ev Event) {
	data := ev.Data
	switch {
	case data == cbHome:
		r.answer(ctx, ev, "")
		text, kb := menuView(r.auth.IsAdmin(ev.UserID))
		r.show(ctx, ev, text, kb)

	case data == cbCatalog:
		r.answer(ctx, ev, "")
		// re-entering the catalog drops any unfinished checkout
		if err := r.checkout.Cancel(ctx, ev.UserID); err != nil {
			r.logger.Warn("Failed to drop checkout session", zap.Error(err), zap.Int64("user_id", ev.UserID))
		}
		products, err := r.catalog.Catalog(ctx)
		if err != nil {
			r.fail(ctx, ev, err)
			return
		}
		text, kb := catalogView(products)
		r.show(ctx, ev, text, kb)

	case strings.HasPrefix(data, cbBuy):
		id, err := parseID(strings.TrimPrefix(data, cbBuy))
		if err != nil {
			r.answer(ctx, ev, apperr.UserMessage(err))
			return
		}
		r.answer(ctx, ev, "")
		step, err := r.checkout.SelectProduct(ctx, ev.UserID, ev.Username, id)
		r.renderStep(ctx, ev, step, err)

	case data == cbQtyInc, data == cbQtyDec:
		delta := 1
		if data == cbQtyDec {
			delta = -1
		}
		r.answer(ctx, ev, "")
		step, err := r.checkout.AdjustQuantity(ctx, ev.UserID, delta)
		r.renderStep(ctx, ev, step, err)

	case data == cbQtyOK:
		r.answer(ctx, ev, "")
		step, err := r.checkout.ConfirmQuantity(ctx, ev.UserID)
		r.renderStep(ctx, ev, step, err)

	case data == cbSkip:
		r.answer(ctx, ev, "")
		step, err := r.checkout.Skip(ctx, ev.UserID)
		r.renderStep(ctx, ev, step, err)

	case strings.HasPrefix(data, cbMethod):
		r.answer(ctx, ev, "")
		step, err := r.checkout.ChooseMethod(ctx, ev.UserID, strings.TrimPrefix(data, cbMethod))
		r.renderStep(ctx, ev, step, err)

	case data == cbCancel:
		r.answer(ctx, ev, "")
		if err := r.checkout.Cancel(ctx, ev.UserID); err != nil {
			r.fail(ctx, ev, err)
			return
		}
		r.show(ctx, ev, "Checkout cancelled.", Keyboard{{{Text: "🛍 Catalog", Data: cbCatalog}}})

	case data == cbMyOrders:
		r.answer(ctx, ev, "")
		orders, err := r.orders.UserOrders(ctx, ev.UserID)
		if err != nil {
			r.fail(ctx, ev, err)
			return
		}
		text, kb := myOrdersView(orders)
		r.show(ctx, ev, text, kb)

	case strings.HasPrefix(data, cbOrder):
		r.answer(ctx, ev, "")
		r.showOrder(ctx, ev, strings.TrimPrefix(data, cbOrder))

	case data == cbAdminOrders:
		r.answer(ctx, ev, "")
		r.showAdminOrders(ctx, ev)

	case data == cbAdminProds:
		r.answer(ctx, ev, "")
		products, err := r.catalog.AdminProducts(ctx, ev.UserID)
		if err != nil {
			r.fail(ctx, ev, err)
			return
		}
		r.reply(ctx, ev, adminProductsView(products), nil)

	case data == cbAdminVouch:
		r.answer(ctx, ev, "")
		r.showVouchers(ctx, ev)

	case strings.HasPrefix(data, cbAdmin):
		r.handleDecision(ctx, ev)

	default:
		r.answer(ctx, ev, "This button is no longer active.")
	}
}

// handleDecision applies adm_<decision>_<id>
func (r *Router) handleDecision(ctx context.Context, ev Event) {
	rest := strings.TrimPrefix(ev.Data, cbAdmin)
	action, idText, ok := strings.Cut(rest, "_")
	if !ok {
		r.answer(ctx, ev, "This button is no longer active.")
		return
	}
	id, err := parseID(idText)
	if err != nil {
		r.answer(ctx, ev, apperr.UserMessage(err))
		return
	}

	order, changed, err := r.orders.ApplyAdminDecision(ctx, ev.UserID, id, service.Decision(action), "")
	if err != nil {
		r.answer(ctx, ev, apperr.UserMessage(err))
		return
	}
	if !changed {
		r.answer(ctx, ev, "Order #"+idText+" is already "+string(order.Status)+".")
	} else {
		r.answer(ctx, ev, "Order #"+idText+" is now "+string(order.Status)+".")
	}

	text, kb := adminOrderView(order)
	if err := r.sender.EditText(ctx, ev.ChatID, ev.MessageID, text, kb); err != nil {
		// photo messages have no text to edit
		r.logger.Debug("Admin message not edited", zap.Error(err))
		r.reply(ctx, ev, text, kb)
	}
}

func (r *Router) handleText(ctx context.Context, ev Event) {
	step, err := r.checkout.SubmitText(ctx, ev.UserID, ev.Text)
	if apperr.NotFound.Has(err) && step == nil {
		r.reply(ctx, ev, "Use /start to open the menu.", nil)
		return
	}
	if err != nil && step != nil && step.Order == nil {
		// input refused, stay on the same stage
		r.reply(ctx, ev, apperr.UserMessage(err), nil)
		return
	}
	r.renderStep(ctx, ev, step, err)
}

func (r *Router) handlePhoto(ctx context.Context, ev Event) {
	order, _, err := r.orders.SubmitProof(ctx, ev.UserID, ev.PhotoID, ev.Caption)
	if err != nil {
		r.fail(ctx, ev, err)
		return
	}
	r.reply(ctx, ev, "🧾 Proof received for order #"+strconv.FormatInt(order.ID, 10)+". An admin will review it shortly.", nil)
}

// showOrder renders one order; admins get the decision buttons
func (r *Router) showOrder(ctx context.Context, ev Event, idText string) {
	id, err := parseID(idText)
	if err != nil {
		r.fail(ctx, ev, err)
		return
	}
	order, err := r.orders.GetOrder(ctx, ev.UserID, id)
	if err != nil {
		r.fail(ctx, ev, err)
		return
	}
	if r.auth.IsAdmin(ev.UserID) {
		text, kb := adminOrderView(order)
		r.reply(ctx, ev, text, kb)
		return
	}
	text, kb := orderDetailView(order, r.cfg.ManualInstructions)
	r.show(ctx, ev, text, kb)
}

func (r *Router) showAdminOrders(ctx context.Context, ev Event) {
	orders, err := r.orders.RecentOrders(ctx, ev.UserID)
	if err != nil {
		r.fail(ctx, ev, err)
		return
	}
	if len(orders) == 0 {
		r.reply(ctx, ev, "No orders yet.", nil)
		return
	}
	for i := range orders {
		text, kb := adminOrderView(&orders[i])
		r.reply(ctx, ev, text, kb)
	}
}

func (r *Router) showVouchers(ctx context.Context, ev Event) {
	vouchers, err := r.vouchers.Vouchers(ctx, ev.UserID)
	if err != nil {
		r.fail(ctx, ev, err)
		return
	}
	r.reply(ctx, ev, vouchersView(vouchers), nil)
}

// renderStep shows the next checkout stage, or the committed order
func (r *Router) renderStep(ctx context.Context, ev Event, step *checkout.Step, err error) {
	if step != nil && step.Order != nil {
		if err != nil {
			// the order exists but payment creation failed and it was cancelled
			r.reply(ctx, ev, "Payment could not be created: "+apperr.UserMessage(err)+
				"\nOrder #"+strconv.FormatInt(step.Order.ID, 10)+" was cancelled.", Keyboard{{{Text: "🛍 Catalog", Data: cbCatalog}}})
			return
		}
		text, kb := orderCreatedView(step.Order, r.cfg.ManualInstructions)
		r.reply(ctx, ev, text, kb)
		return
	}
	if err != nil {
		r.fail(ctx, ev, err)
		if step != nil && step.Session != nil {
			text, kb := stepView(r.checkout.Flow(), step)
			r.reply(ctx, ev, text, kb)
		}
		return
	}
	text, kb := stepView(r.checkout.Flow(), step)
	r.show(ctx, ev, text, kb)
}

// done replies with ok() on success or the user message of err
func (r *Router) done(ctx context.Context, ev Event, err error, ok func() string) {
	if err != nil {
		r.fail(ctx, ev, err)
		return
	}
	r.reply(ctx, ev, ok(), nil)
}

func (r *Router) fail(ctx context.Context, ev Event, err error) {
	if !apperr.Classified(err) {
		r.logger.Error("Chat request failed",
			zap.Error(err),
			zap.Int64("user_id", ev.UserID),
			zap.String("kind", ev.Kind.String()),
		)
	}
	r.reply(ctx, ev, apperr.UserMessage(err), nil)
}

// show edits the message a button belongs to, or sends a new one
func (r *Router) show(ctx context.Context, ev Event, text string, kb Keyboard) {
	if ev.Kind == EventCallback && ev.MessageID != 0 {
		if err := r.sender.EditText(ctx, ev.ChatID, ev.MessageID, text, kb); err == nil {
			return
		}
	}
	r.reply(ctx, ev, text, kb)
}

func (r *Router) reply(ctx context.Context, ev Event, text string, kb Keyboard) {
	if err := r.sender.SendText(ctx, ev.ChatID, text, kb); err != nil {
		r.logger.Warn("Failed to send reply", zap.Error(err), zap.Int64("chat_id", ev.ChatID))
	}
}

func (r *Router) answer(ctx context.Context, ev Event, text string) {
	if ev.CallbackID == "" {
		return
	}
	if err := r.sender.AnswerCallback(ctx, ev.CallbackID, text); err != nil {
		r.logger.Debug("Failed to answer callback", zap.Error(err))
	}
}
