package receipt

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/romana/rlog"
	"restaurant_pos/model"
)

const RECEIPT_WIDTH = 42

// Sink delivers a finished invoice to a printer or a downstream system.
type Sink interface {
	Print(ctx context.Context, invoice *model.Invoice) error
}

type SinkFunc func(ctx context.Context, invoice *model.Invoice) error

func (f SinkFunc) Print(ctx context.Context, invoice *model.Invoice) error {
	return f(ctx, invoice)
}

// Status is reported back to the cashier with the invoice.
type Status struct {
	Printed bool   `json:"printed"`
	Error   string `json:"error,omitempty"`
}

type LogSink struct{}

func (LogSink) Print(ctx context.Context, invoice *model.Invoice) error {
	rlog.Infof("Receipt for order %s:\n%s", invoice.OrderNumber, Render(invoice))
	return nil
}

// Dispatcher runs a sink with its own deadline and a bounded number of retries.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	retries int
	backoff time.Duration
}

func NewDispatcher(sink Sink, timeout time.Duration, retries int) *Dispatcher {
	if retries < 0 {
		retries = 0
	}
	return &Dispatcher{sink: sink, timeout: timeout, retries: retries, backoff: 100 * time.Millisecond}
}

// WithBackoff sets the pause between attempts.
func (d *Dispatcher) WithBackoff(backoff time.Duration) *Dispatcher {
	d.backoff = backoff
	return d
}

func (d *Dispatcher) attempt(ctx context.Context, invoice *model.Invoice) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.sink.Print(ctx, invoice)
}

// Dispatch never touches order state. A nil dispatcher reports an unprinted receipt.
func (d *Dispatcher) Dispatch(ctx context.Context, invoice *model.Invoice) Status {
	if d == nil || d.sink == nil {
		return Status{}
	}
	// The receipt outlives a cancelled request.
	ctx = context.WithoutCancel(ctx)
	var err error
	for i := 0; i <= d.retries; i++ {
		if i > 0 {
			time.Sleep(d.backoff * time.Duration(i))
		}
		if err = d.attempt(ctx, invoice); err == nil {
			return Status{Printed: true}
		}
		rlog.Warnf("Receipt for order %s failed (attempt %d): %s", invoice.OrderNumber, i+1, err.Error())
	}
	return Status{Error: err.Error()}
}

func line(buf *bytes.Buffer, left, right string) {
	gap := RECEIPT_WIDTH - len([]rune(left)) - len([]rune(right))
	if gap < 1 {
		gap = 1
	}
	buf.WriteString(left + strings.Repeat(" ", gap) + right + "\n")
}

// Render lays the invoice out as a fixed width plain-text receipt.
func Render(invoice *model.Invoice) []byte {
	buf := bytes.Buffer{}
	rule := strings.Repeat("-", RECEIPT_WIDTH) + "\n"

	line(&buf, "Order", invoice.OrderNumber)
	line(&buf, "Date", invoice.Date.Format("2006-01-02 15:04"))
	line(&buf, "Table", fmt.Sprintf("%d", invoice.TableNumber))
	line(&buf, "Cashier", invoice.Cashier)
	buf.WriteString(rule)
	for _, item := range invoice.Items {
		line(&buf, fmt.Sprintf("%s x%d", item.Name, item.Quantity), item.Subtotal.StringFixed(2))
		line(&buf, "  @ "+item.Price.StringFixed(2), "")
		if item.Notes != nil && *item.Notes != "" {
			buf.WriteString("  * " + *item.Notes + "\n")
		}
	}
	buf.WriteString(rule)
	line(&buf, "SUBTOTAL", invoice.Subtotal.StringFixed(2))
	line(&buf, "Payment", invoice.PaymentMethod+" "+invoice.PaymentStatus)
	return buf.Bytes()
}
