package bot

import (
	"fmt"
	"strconv"
	"strings"

	"auto-order/internal/checkout"
	"auto-order/internal/models"
	"auto-order/internal/pricing"
)

// Callback data
const (
	cbHome        = "home"
	cbCatalog     = "cat"
	cbBuy         = "buy_"
	cbQtyInc      = "qty_inc"
	cbQtyDec      = "qty_dec"
	cbQtyOK       = "qty_ok"
	cbSkip        = "skip"
	cbMethod      = "pm_"
	cbCancel      = "cancel"
	cbMyOrders    = "my"
	cbOrder       = "ord_"
	cbAdminOrders = "adm_orders"
	cbAdminProds  = "adm_products"
	cbAdminVouch  = "adm_vouchers"
	cbAdmin       = "adm_"
)

var rp = pricing.FormatRupiah

func menuView(isAdmin bool) (string, Keyboard) {
	kb := Keyboard{
		{{Text: "🛍 Catalog", Data: cbCatalog}},
		{{Text: "📦 My orders", Data: cbMyOrders}},
	}
	if isAdmin {
		kb = append(kb, []Button{
			{Text: "🧾 Orders", Data: cbAdminOrders},
			{Text: "📋 Products", Data: cbAdminProds},
			{Text: "🎟 Vouchers", Data: cbAdminVouch},
		})
	}
	return "Welcome! Pick a product from the catalog to start an order.", kb
}

func catalogView(products []models.Product) (string, Keyboard) {
	if len(products) == 0 {
		return "The catalog is empty right now.", Keyboard{{{Text: "⬅️ Back", Data: cbHome}}}
	}
	var b strings.Builder
	b.WriteString("Catalog:\n")
	kb := make(Keyboard, 0, len(products)+1)
	for _, p := range products {
		fmt.Fprintf(&b, "\n• %s - %s", p.Name, rp(p.Price))
		if p.Note != "" {
			fmt.Fprintf(&b, "\n  %s", p.Note)
		}
		kb = append(kb, []Button{{Text: fmt.Sprintf("%s (%s)", p.Name, rp(p.Price)), Data: cbBuy + strconv.FormatInt(p.ID, 10)}})
	}
	kb = append(kb, []Button{{Text: "⬅️ Back", Data: cbHome}})
	return b.String(), kb
}

func summary(sess *checkout.Session, quote pricing.Breakdown) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nPrice: %s x %d = %s", sess.ProductName, rp(sess.UnitPrice), sess.Qty, rp(quote.Subtotal))
	if sess.Note != "" {
		fmt.Fprintf(&b, "\nAccount: %s", sess.Note)
	}
	if quote.Discount > 0 {
		fmt.Fprintf(&b, "\nVoucher %s: -%s", sess.VoucherCode, rp(quote.Discount))
	}
	if quote.Fee > 0 {
		fmt.Fprintf(&b, "\nFee: %s", rp(quote.Fee))
	}
	fmt.Fprintf(&b, "\nTotal: %s", rp(quote.Total))
	return b.String()
}

var cancelRow = []Button{{Text: "❌ Cancel", Data: cbCancel}}

// stepView renders the session stage the user is in
func stepView(flow *checkout.Flow, step *checkout.Step) (string, Keyboard) {
	sess := step.Session
	text := summary(sess, step.Quote)

	switch sess.Stage {
	case checkout.StageQuantity:
		return text + "\n\nChoose the quantity:", Keyboard{
			{{Text: "➖", Data: cbQtyDec}, {Text: strconv.Itoa(sess.Qty), Data: cbQtyOK}, {Text: "➕", Data: cbQtyInc}},
			{{Text: "✅ Next", Data: cbQtyOK}},
			cancelRow,
		}

	case checkout.StageAccountInfo:
		kb := Keyboard{}
		if !sess.RequiresAccountInfo {
			kb = append(kb, []Button{{Text: "⏭ Skip", Data: cbSkip}})
		}
		kb = append(kb, cancelRow)
		return text + "\n\nSend the account info for this order (email, ID or username).", kb

	case checkout.StageVoucher:
		return text + "\n\nSend a voucher code, or press Skip.", Keyboard{
			{{Text: "⏭ Skip", Data: cbSkip}},
			cancelRow,
		}

	case checkout.StagePaymentMethod:
		kb := Keyboard{}
		for _, m := range flow.Methods {
			label := m
			if fee := pricing.FeeFor(flow.Fees, m, flow.DefaultFee); fee > 0 {
				label = fmt.Sprintf("%s (+%s)", m, rp(fee))
			}
			kb = append(kb, []Button{{Text: label, Data: cbMethod + m}})
		}
		kb = append(kb, cancelRow)
		return text + "\n\nChoose a payment method:", kb
	}
	return text, Keyboard{cancelRow}
}

// orderCreatedView tells the buyer how to pay a committed order
func orderCreatedView(order *models.Order, manualInstructions string) (string, Keyboard) {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%d created.\n%s x%d\nTotal: %s\nRef: %s",
		order.ID, order.ProductName, order.Qty, rp(order.Amount), order.ReferenceID)

	if order.Lane == models.LaneGateway && order.PayURL != "" {
		b.WriteString("\n\nPay with QRIS using the button below. The order updates automatically once paid.")
		return b.String(), Keyboard{{{Text: "💳 Pay now", URL: order.PayURL}}}
	}
	if order.PaymentMethod != "" {
		fmt.Fprintf(&b, "\nMethod: %s", order.PaymentMethod)
	}
	fmt.Fprintf(&b, "\n\n%s\nCaption the photo with #%d.", manualInstructions, order.ID)
	return b.String(), nil
}

func orderLine(o *models.Order) string {
	line := fmt.Sprintf("#%d %s x%d - %s - %s", o.ID, o.ProductName, o.Qty, rp(o.Amount), o.Status)
	if o.Status == models.StatusPaymentCreated && o.PayURL != "" {
		line += "\n   pay: " + o.PayURL
	}
	return line
}

func myOrdersView(orders []models.Order) (string, Keyboard) {
	back := []Button{{Text: "⬅️ Back", Data: cbHome}}
	if len(orders) == 0 {
		return "You have no orders yet.", Keyboard{back}
	}
	var b strings.Builder
	b.WriteString("Your latest orders:\n")
	kb := Keyboard{}
	for i := range orders {
		b.WriteString("\n" + orderLine(&orders[i]))
		id := strconv.FormatInt(orders[i].ID, 10)
		kb = append(kb, []Button{{Text: "🔎 #" + id, Data: cbOrder + id}})
	}
	return b.String(), append(kb, back)
}

// orderDetailView is one order as its buyer sees it
func orderDetailView(o *models.Order, manualInstructions string) (string, Keyboard) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nRef: %s", orderLine(o), o.ReferenceID)
	if o.Note != "" {
		fmt.Fprintf(&b, "\nAccount: %s", o.Note)
	}
	if o.VoucherCode != nil {
		fmt.Fprintf(&b, "\nVoucher: %s (-%s)", *o.VoucherCode, rp(o.Discount))
	}
	if o.AdminNote != "" {
		fmt.Fprintf(&b, "\nNote: %s", o.AdminNote)
	}

	kb := Keyboard{}
	switch o.Status {
	case models.StatusPaymentCreated:
		if o.PayURL != "" {
			kb = append(kb, []Button{{Text: "💳 Pay now", URL: o.PayURL}})
		}
	case models.StatusWaitingPayment:
		fmt.Fprintf(&b, "\n\n%s\nCaption the photo with #%d.", manualInstructions, o.ID)
	}
	return b.String(), append(kb, []Button{{Text: "⬅️ Back", Data: cbMyOrders}})
}

// adminOrderView is one order with its decision buttons
func adminOrderView(o *models.Order) (string, Keyboard) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nBuyer: %s (%d)\nMethod: %s\nRef: %s", orderLine(o), o.Username, o.UserID, o.PaymentMethod, o.ReferenceID)
	if o.Note != "" {
		fmt.Fprintf(&b, "\nAccount: %s", o.Note)
	}
	if o.VoucherCode != nil {
		fmt.Fprintf(&b, "\nVoucher: %s (-%s)", *o.VoucherCode, rp(o.Discount))
	}
	if o.ProofCaption != "" {
		fmt.Fprintf(&b, "\nProof caption: %s", o.ProofCaption)
	}
	if o.AdminNote != "" {
		fmt.Fprintf(&b, "\nNote: %s", o.AdminNote)
	}
	return b.String(), decisionKeyboard(o)
}

func decisionKeyboard(o *models.Order) Keyboard {
	if o.Status.IsTerminal() {
		return nil
	}
	id := strconv.FormatInt(o.ID, 10)
	if o.Status == models.StatusPaid {
		return Keyboard{{{Text: "📦 Done", Data: cbAdmin + "done_" + id}}}
	}
	row := []Button{{Text: "✅ Approve", Data: cbAdmin + "approve_" + id}}
	if o.Lane == models.LaneManual {
		row = append(row, Button{Text: "⛔ Reject", Data: cbAdmin + "reject_" + id})
	}
	row = append(row, Button{Text: "🗑 Cancel", Data: cbAdmin + "cancel_" + id})
	return Keyboard{row}
}

func adminProductsView(products []models.Product) string {
	if len(products) == 0 {
		return "No products. Add one with /addprod Name | price | note | account=1"
	}
	var b strings.Builder
	b.WriteString("Products:\n")
	for _, p := range products {
		state := "active"
		if !p.Active {
			state = "hidden"
		}
		fmt.Fprintf(&b, "\n%d. %s - %s [%s]", p.ID, p.Name, rp(p.Price), state)
		if p.RequiresAccountInfo {
			b.WriteString(" (account)")
		}
	}
	b.WriteString("\n\n/addprod Name | price | note | account=1\n/setprod ID | Name | price | active=1/0 | note\n/delprod ID")
	return b.String()
}

func vouchersView(vouchers []models.Voucher) string {
	if len(vouchers) == 0 {
		return "No vouchers. Add one with /addvoucher CODE | percent|fixed | value | max_uses | YYYY-MM-DD"
	}
	var b strings.Builder
	b.WriteString("Vouchers:\n")
	for _, v := range vouchers {
		value := rp(v.Value)
		if v.DiscountType == models.DiscountPercent {
			value = fmt.Sprintf("%d%%", v.Value)
		}
		uses := fmt.Sprintf("%d/∞", v.UsedCount)
		if v.MaxUses > 0 {
			uses = fmt.Sprintf("%d/%d", v.UsedCount, v.MaxUses)
		}
		fmt.Fprintf(&b, "\n%s - %s - used %s", v.Code, value, uses)
		if v.ExpiresOn != nil {
			fmt.Fprintf(&b, " - until %s", v.ExpiresOn.Format("2006-01-02"))
		}
	}
	return b.String()
}

// userNotice is what the buyer hears about an order event
func userNotice(event *models.OrderEvent) string {
	switch event.EventType {
	case models.EventTypeOrderPaid:
		return fmt.Sprintf("✅ Payment for order #%d (%s) received. We are processing it now.", event.OrderID, rp(event.Amount))
	case models.EventTypeOrderRejected:
		return withNote(fmt.Sprintf("⛔ Order #%d was rejected.", event.OrderID), event.AdminNote)
	case models.EventTypeOrderDone:
		return withNote(fmt.Sprintf("📦 Order #%d is done. Thank you!", event.OrderID), event.AdminNote)
	case models.EventTypeOrderCancelled:
		return withNote(fmt.Sprintf("🗑 Order #%d was cancelled.", event.OrderID), event.AdminNote)
	case models.EventTypeOrderExpired:
		return fmt.Sprintf("⌛ The payment for order #%d expired. Start a new order from the catalog.", event.OrderID)
	}
	return fmt.Sprintf("Order #%d is now %s.", event.OrderID, event.Status)
}

// adminNotice is what admins hear about an order event
func adminNotice(event *models.OrderEvent) string {
	head := "Order"
	switch event.EventType {
	case models.EventTypeOrderPaid:
		head = "💰 Paid"
	case models.EventTypeOrderProofSubmitted:
		head = "🧾 Proof submitted"
	}
	text := fmt.Sprintf("%s #%d\n%s x%d - %s\nBuyer: %s (%d)\nMethod: %s",
		head, event.OrderID, event.ProductName, event.Qty, rp(event.Amount), event.Username, event.UserID, event.PaymentMethod)
	if event.GatewayTrxID != "" {
		text += "\nTrx: " + event.GatewayTrxID
	}
	if event.ProofCaption != "" {
		text += "\nCaption: " + event.ProofCaption
	}
	return text
}

func withNote(text, note string) string {
	if note == "" {
		return text
	}
	return text + "\nNote: " + note
}
