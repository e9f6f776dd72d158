package receipt

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/romana/rlog"
	"restaurant_pos/model"
)

// Publisher is satisfied by *amqp.Channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes the invoice as JSON for the printer bridge to pick up.
type AMQPSink struct {
	publisher  Publisher
	exchange   string
	routingKey string
}

func NewAMQPSink(publisher Publisher, exchange, routingKey string) *AMQPSink {
	return &AMQPSink{publisher: publisher, exchange: exchange, routingKey: routingKey}
}

func (s *AMQPSink) Print(ctx context.Context, invoice *model.Invoice) error {
	body, err := json.Marshal(invoice)
	if err != nil {
		return err
	}
	return s.publisher.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    invoice.OrderNumber,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

type Broker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialBroker connects and declares a durable direct exchange bound to queue,
// with a dead-letter exchange behind it.
func DialBroker(url, exchange, routingKey, queue string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	b := &Broker{conn: conn, ch: ch}
	if err = ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		b.Close()
		return nil, err
	}
	// Rejected receipts land in <queue>.dlq for a manual reprint.
	deadLetters := exchange + ".dlx"
	if err = ch.ExchangeDeclare(deadLetters, "direct", true, false, false, false, nil); err != nil {
		b.Close()
		return nil, err
	}
	if _, err = ch.QueueDeclare(queue+".dlq", true, false, false, false, nil); err != nil {
		b.Close()
		return nil, err
	}
	if err = ch.QueueBind(queue+".dlq", routingKey, deadLetters, false, nil); err != nil {
		b.Close()
		return nil, err
	}
	if _, err = ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": deadLetters,
	}); err != nil {
		b.Close()
		return nil, err
	}
	if err = ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Broker) Channel() *amqp.Channel {
	return b.ch
}

func (b *Broker) Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := b.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return b.ch.Consume(queue, consumer, false, false, false, false, nil)
}

func (b *Broker) Close() {
	if b == nil {
		return
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}

// Forward prints every delivery through d. Printed receipts are acked and
// undecodable ones rejected. A failed receipt is requeued once; a failed
// redelivery is rejected so the broker dead-letters it.
func Forward(ctx context.Context, deliveries <-chan amqp.Delivery, d *Dispatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			handleDelivery(ctx, delivery, d)
		}
	}
}

func handleDelivery(ctx context.Context, delivery amqp.Delivery, d *Dispatcher) {
	invoice := model.Invoice{}
	if err := json.Unmarshal(delivery.Body, &invoice); err != nil {
		rlog.Errorf("Drop malformed receipt %s: %s", delivery.MessageId, err.Error())
		_ = delivery.Reject(false)
		return
	}
	status := d.Dispatch(ctx, &invoice)
	if status.Printed {
		_ = delivery.Ack(false)
		return
	}
	if delivery.Redelivered {
		rlog.Warnf("Give up receipt %s after redelivery: %s", delivery.MessageId, status.Error)
		_ = delivery.Reject(false)
		return
	}
	_ = delivery.Nack(false, true)
}
