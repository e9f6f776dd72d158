package billing

import (
	"context"

	"github.com/romana/rlog"
	"restaurant_pos/constants"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/order"
	"restaurant_pos/custom/receipt"
	"restaurant_pos/custom/store"
	"restaurant_pos/custom/util"
	"restaurant_pos/model"
)

type Service struct {
	st         store.Store
	orders     *order.Service
	dispatcher *receipt.Dispatcher
}

// Result pairs the invoice with the outcome of handing it to the receipt sink.
type Result struct {
	Invoice *model.Invoice `json:"invoice"`
	Receipt receipt.Status `json:"receipt"`
}

// NewService Payment and completion share the order service's transaction policy and clock.
func NewService(st store.Store, orders *order.Service, dispatcher *receipt.Dispatcher) *Service {
	return &Service{st: st, orders: orders, dispatcher: dispatcher}
}

func (s *Service) fail(operation string, err error) error {
	appErr := util.ToAppError(err, constants.ORDER_NOT_FOUND)
	if app_error.IsKind(appErr, app_error.KindSystem) {
		rlog.Errorf("%s failed: %s", operation, err.Error())
	}
	return appErr
}

// cashierName prefers the caller and falls back to whoever opened the order.
func cashierName(caller *model.User, order *model.Order) string {
	if caller != nil && caller.FullName != "" {
		return caller.FullName
	}
	if order.User != nil {
		return order.User.FullName
	}
	return ""
}

func buildInvoice(order *model.Order, payment *model.Payment, cashier string) *model.Invoice {
	invoice := &model.Invoice{
		OrderNumber:   order.OrderNumber,
		Date:          payment.CreatedAt,
		Items:         make([]model.InvoiceLine, 0, len(order.Items)),
		Subtotal:      order.TotalAmount,
		PaymentMethod: payment.Method,
		PaymentStatus: payment.Status,
		Cashier:       cashier,
	}
	if order.Table != nil {
		invoice.TableNumber = order.Table.Number
	}
	for _, item := range order.Items {
		name := ""
		if item.MenuItem != nil {
			name = item.MenuItem.Name
		}
		invoice.Items = append(invoice.Items, model.InvoiceLine{
			Name:     name,
			Quantity: item.Quantity,
			Price:    item.Price,
			Subtotal: item.Subtotal(),
			Notes:    item.Notes,
		})
	}
	return invoice
}

// GenerateInvoice settles an open order: one payment for the full total, the
// order completed and its table released, all in one transaction. The receipt
// is printed after commit and its failure never undoes the payment.
func (s *Service) GenerateInvoice(ctx context.Context, userId, orderId uint, method string) (*Result, error) {
	if !util.Contains(constants.PAYMENT_METHODS, method) {
		return nil, app_error.Validation(constants.INVALID_PAYMENT_METHOD)
	}

	var invoice *model.Invoice
	err := store.RunInTx(ctx, s.st, s.orders.TxPolicy(), "generate invoice", func(ctx context.Context, tx store.Store) error {
		locked, err := tx.Orders().LockByID(ctx, orderId)
		if err != nil {
			return err
		}
		if locked.Status == constants.ORDER_STATUS_COMPLETED {
			return app_error.AlreadyCompleted(constants.ORDER_ALREADY_COMPLETED)
		}
		caller, err := tx.Users().FindByID(ctx, userId, store.QueryOptions{IncludeDeleted: true})
		if err != nil && !store.IsNotFound(err) {
			return err
		}

		payment := model.Payment{
			OrderID: locked.ID,
			Amount:  locked.TotalAmount,
			Method:  method,
			Status:  constants.PAYMENT_STATUS_COMPLETED,
		}
		if caller != nil {
			payment.CashierID = &caller.ID
		}
		if err = tx.Payments().Create(ctx, &payment); err != nil {
			if store.IsUniqueViolation(err) {
				return app_error.AlreadyCompleted(constants.ORDER_ALREADY_COMPLETED)
			}
			return err
		}
		if err = s.orders.CompleteTx(ctx, tx, locked); err != nil {
			return err
		}

		settled, err := tx.Orders().FindByID(ctx, orderId, store.QueryOptions{})
		if err != nil {
			return err
		}
		invoice = buildInvoice(settled, &payment, cashierName(caller, settled))
		return nil
	})
	if err != nil {
		return nil, s.fail("generate invoice", err)
	}
	rlog.Infof("Order %s was paid by %s: %s", invoice.OrderNumber, method, invoice.Subtotal.StringFixed(2))

	return &Result{Invoice: invoice, Receipt: s.dispatcher.Dispatch(ctx, invoice)}, nil
}

// Reprint rebuilds the invoice of a settled order and sends it to the sink again.
func (s *Service) Reprint(ctx context.Context, orderId uint) (*Result, error) {
	settled, err := s.st.Orders().FindByID(ctx, orderId, store.QueryOptions{})
	if err != nil {
		return nil, s.fail("reprint invoice", err)
	}
	if settled.Payment == nil {
		return nil, app_error.NotFound(constants.PAYMENT_NOT_FOUND)
	}
	var cashier *model.User
	if settled.Payment.CashierID != nil {
		cashier, err = s.st.Users().FindByID(ctx, *settled.Payment.CashierID, store.QueryOptions{IncludeDeleted: true})
		if err != nil && !store.IsNotFound(err) {
			return nil, s.fail("reprint invoice", err)
		}
	}
	invoice := buildInvoice(settled, settled.Payment, cashierName(cashier, settled))
	return &Result{Invoice: invoice, Receipt: s.dispatcher.Dispatch(ctx, invoice)}, nil
}
