package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/romana/rlog"
	"gorm.io/gorm/logger"
	"restaurant_pos/custom/billing"
	"restaurant_pos/custom/category"
	"restaurant_pos/custom/menu"
	"restaurant_pos/custom/order"
	"restaurant_pos/custom/receipt"
	"restaurant_pos/custom/revenue"
	"restaurant_pos/custom/store"
	"restaurant_pos/custom/store/memstore"
	"restaurant_pos/custom/table"
	"restaurant_pos/custom/user"
	"restaurant_pos/custom/util"
)

func openStore(serverConfig *util.ServerConfig) store.Store {
	if serverConfig.Store == "memory" {
		rlog.Warn("Using the in-memory store, data is lost on restart")
		return memstore.New()
	}
	replicas := make([]string, 0, len(serverConfig.Postgres.Replicas))
	for _, replica := range serverConfig.Postgres.Replicas {
		replicas = append(replicas, replica.DSN())
	}
	db, err := store.Open(store.Options{
		Driver:          serverConfig.Postgres.Driver,
		DSN:             serverConfig.Postgres.DSN(),
		ReplicaDSNs:     replicas,
		MaxIdleConns:    serverConfig.Postgres.MaxIdleConns,
		MaxOpenConns:    serverConfig.Postgres.MaxOpenConns,
		ConnMaxLifetime: serverConfig.Postgres.ConnMaxLifetime,
		LogLevel:        logger.Warn,
	})
	if err != nil {
		panic("failed to connect database" + err.Error())
	}

	// Auto migrate table schemas
	if err = store.Migrate(db); err != nil {
		panic("failed to migrate database" + err.Error())
	}
	return store.NewGormStore(db)
}

// receiptDispatcher builds the configured sink. The cleanup func closes broker connections.
func receiptDispatcher(ctx context.Context, serverConfig *util.ServerConfig) (*receipt.Dispatcher, func()) {
	conf := serverConfig.Receipt
	wrap := func(sink receipt.Sink) *receipt.Dispatcher {
		return receipt.NewDispatcher(sink, conf.Timeout, conf.Retries)
	}
	switch conf.Sink {
	case "none":
		return nil, func() {}
	case "printer":
		return wrap(receipt.NewPrinterSink(serverConfig.Printer.Address, serverConfig.Printer.Timeout)), func() {}
	case "amqp":
		mq := serverConfig.RabbitMQ
		broker, err := receipt.DialBroker(mq.Url, mq.Exchange, mq.RoutingKey, mq.Queue)
		if err != nil {
			panic("failed to connect rabbitmq" + err.Error())
		}
		return wrap(receipt.NewAMQPSink(broker.Channel(), mq.Exchange, mq.RoutingKey)), broker.Close
	case "queue":
		// Cashiers get an immediate answer and the queue feeds the printer in the background.
		var downstream receipt.Sink = receipt.LogSink{}
		if serverConfig.Printer.Address != "" {
			downstream = receipt.NewPrinterSink(serverConfig.Printer.Address, serverConfig.Printer.Timeout)
		}
		queue := receipt.NewQueueSink(0)
		go queue.Drain(ctx, wrap(downstream))
		return receipt.NewDispatcher(queue, conf.Timeout, 0), queue.CloseQueue
	}
	return wrap(receipt.LogSink{}), func() {}
}

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path of the yaml config")
	flag.Parse()

	serverConfig := util.ServerConfig{}
	serverConfig.GetConf(*configPath)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := openStore(&serverConfig)
	txPolicy := store.TxPolicy{
		Timeout:    serverConfig.Order.TxTimeout,
		MaxRetries: serverConfig.Order.MaxRetries,
		Backoff:    store.DefaultTxPolicy.Backoff,
	}

	// Initialize services
	orderService, err := order.NewService(st, order.Config{
		TxPolicy:    txPolicy,
		NodeId:      serverConfig.Order.NodeId,
		PricePolicy: serverConfig.Order.PricePolicy,
	})
	if err != nil {
		panic("invalid order config" + err.Error())
	}
	dispatcher, closeSink := receiptDispatcher(ctx, &serverConfig)
	defer closeSink()
	revenueService, err := revenue.NewService(st, serverConfig.Revenue.Timezone, serverConfig.Revenue.TopItems, time.Now)
	if err != nil {
		panic("invalid revenue config" + err.Error())
	}

	// Initialize handler contexts
	categoryCtx := category.HandlerContext{}
	categoryCtx.InitialHandlerContext(st, txPolicy)
	userCtx := user.HandlerContext{}
	userCtx.InitialHandlerContext(st, txPolicy)
	menuCtx := menu.HandlerContext{}
	menuCtx.InitialHandlerContext(st, txPolicy)
	tableCtx := table.HandlerContext{}
	tableCtx.InitialHandlerContext(table.NewService(st, txPolicy, time.Now))
	orderCtx := order.HandlerContext{}
	orderCtx.InitialHandlerContext(orderService)
	billingCtx := billing.HandlerContext{}
	billingCtx.InitialHandlerContext(billing.NewService(st, orderService, dispatcher))
	revenueCtx := revenue.HandlerContext{}
	revenueCtx.InitialHandlerContext(revenueService)

	// Start REST APIs
	mux := http.NewServeMux()
	mux.HandleFunc("/pos/create_categories", categoryCtx.CreateCategories)
	mux.HandleFunc("/pos/query_category", categoryCtx.QueryCategory)
	mux.HandleFunc("/pos/update_category", categoryCtx.UpdateCategory)
	mux.HandleFunc("/pos/delete_category", categoryCtx.DeleteCategory)

	mux.HandleFunc("/pos/create_users", userCtx.CreateUsers)
	mux.HandleFunc("/pos/query_user", userCtx.QueryUser)
	mux.HandleFunc("/pos/delete_user", userCtx.DeleteUser)

	mux.HandleFunc("/pos/create_menu_items", menuCtx.CreateMenuItems)
	mux.HandleFunc("/pos/query_menu_item", menuCtx.QueryMenuItem)
	mux.HandleFunc("/pos/search_menu_items", menuCtx.SearchMenuItems)
	mux.HandleFunc("/pos/update_menu_item", menuCtx.UpdateMenuItem)
	mux.HandleFunc("/pos/delete_menu_item", menuCtx.DeleteMenuItem)

	mux.HandleFunc("/pos/create_table", tableCtx.CreateTable)
	mux.HandleFunc("/pos/query_table", tableCtx.QueryTable)
	mux.HandleFunc("/pos/update_table", tableCtx.UpdateTable)
	mux.HandleFunc("/pos/override_table_status", tableCtx.OverrideTableStatus)
	mux.HandleFunc("/pos/delete_table", tableCtx.DeleteTable)
	mux.HandleFunc("/pos/query_current_order", tableCtx.QueryCurrentOrder)

	mux.HandleFunc("/pos/create_order", orderCtx.CreateOrder)
	mux.HandleFunc("/pos/reconcile_items", orderCtx.ReconcileItems)
	mux.HandleFunc("/pos/query_order", orderCtx.QueryOrder)
	mux.HandleFunc("/pos/query_table_orders", orderCtx.QueryTableOrders)
	mux.HandleFunc("/pos/update_order_status", orderCtx.UpdateOrderStatus)
	mux.HandleFunc("/pos/complete_order", orderCtx.CompleteOrder)

	mux.HandleFunc("/pos/generate_invoice", billingCtx.GenerateInvoice)
	mux.HandleFunc("/pos/reprint_invoice", billingCtx.ReprintInvoice)

	mux.HandleFunc("/pos/revenue", revenueCtx.QueryRevenue)

	rlog.Infof("POS server listening on port %d with %s store", serverConfig.Port, serverConfig.Store)
	log.Fatal(http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", serverConfig.Port), util.WithRequestId(mux)))
}
