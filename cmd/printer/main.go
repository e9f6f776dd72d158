package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/romana/rlog"
	"restaurant_pos/custom/receipt"
	"restaurant_pos/custom/util"
)

// Receipt printer bridge: drains invoices published by the POS server and
// writes them to the network printer. Failed prints are requeued by the broker.
func main() {
	configPath := flag.String("config", "./config/config.yaml", "path of the yaml config")
	flag.Parse()

	serverConfig := util.ServerConfig{}
	serverConfig.GetConf(*configPath)
	mq := serverConfig.RabbitMQ

	broker, err := receipt.DialBroker(mq.Url, mq.Exchange, mq.RoutingKey, mq.Queue)
	if err != nil {
		panic("failed to connect rabbitmq" + err.Error())
	}
	defer broker.Close()

	deliveries, err := broker.Consume(mq.Queue, "receipt-printer", 1)
	if err != nil {
		panic("failed to consume receipts" + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := receipt.NewPrinterSink(serverConfig.Printer.Address, serverConfig.Printer.Timeout)
	dispatcher := receipt.NewDispatcher(printer, serverConfig.Receipt.Timeout, serverConfig.Receipt.Retries)
	rlog.Infof("Printing receipts from %s to %s", mq.Queue, serverConfig.Printer.Address)
	receipt.Forward(ctx, deliveries, dispatcher)
	rlog.Info("Receipt printer stopped")
}
