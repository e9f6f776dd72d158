package receipt

import (
	"context"
	"net"
	"time"

	"restaurant_pos/model"
)

// PrinterSink writes the rendered receipt to a raw TCP printer port.
type PrinterSink struct {
	Address string
	Timeout time.Duration
	dialer  net.Dialer
}

func NewPrinterSink(address string, timeout time.Duration) *PrinterSink {
	return &PrinterSink{Address: address, Timeout: timeout}
}

func (p *PrinterSink) Print(ctx context.Context, invoice *model.Invoice) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := writeDeadline(ctx, p.Timeout); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	// Form feed ends the ticket.
	_, err = conn.Write(append(Render(invoice), '\n', '\f'))
	return err
}

func writeDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if timeout > 0 {
		own := time.Now().Add(timeout)
		if !ok || own.Before(deadline) {
			return own, true
		}
	}
	return deadline, ok
}
