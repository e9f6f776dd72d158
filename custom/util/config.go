package util

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type DbConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

func (c DbConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

type PostgresConfig struct {
	DbConfig        `yaml:",inline"`
	Driver          string        `yaml:"driver"`
	Replicas        []DbConfig    `yaml:"replicas"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type OrderConfig struct {
	TxTimeout   time.Duration `yaml:"tx_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	NodeId      int64         `yaml:"node_id"`
	PricePolicy string        `yaml:"price_policy"`
}

type RabbitMQConfig struct {
	Url        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	Queue      string `yaml:"queue"`
}

type PrinterConfig struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

type ReceiptConfig struct {
	// Sink is one of log, queue, amqp, printer or none.
	Sink    string        `yaml:"sink"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

type RevenueConfig struct {
	Timezone string `yaml:"timezone"`
	TopItems int    `yaml:"top_items"`
}

type ServerConfig struct {
	Port     int            `yaml:"port"`
	Store    string         `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	Order    OrderConfig    `yaml:"order"`
	Receipt  ReceiptConfig  `yaml:"receipt"`
	Revenue  RevenueConfig  `yaml:"revenue"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Printer  PrinterConfig  `yaml:"printer"`
}

func (c *ServerConfig) GetConf(fileName string) *ServerConfig {
	yamlFile, err := os.ReadFile(fileName)
	if err != nil {
		log.Printf("Read yaml file %s failed: %s ", fileName, err.Error())
	}
	if err = c.Parse(yamlFile); err != nil {
		log.Fatalf("Unmarshal: %v", err)
	}
	return c
}

// UNSET_RETRIES marks a retry count the YAML did not set. An explicit 0 disables retries.
const UNSET_RETRIES = -1

// Parse decodes YAML over the current values and fills defaults for anything left unset.
func (c *ServerConfig) Parse(data []byte) error {
	if c.Order.MaxRetries == 0 {
		c.Order.MaxRetries = UNSET_RETRIES
	}
	if c.Receipt.Retries == 0 {
		c.Receipt.Retries = UNSET_RETRIES
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	c.applyDefaults()
	return nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Store == "" {
		c.Store = "postgres"
	}
	if c.Postgres.Driver == "" {
		c.Postgres.Driver = "pgx"
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 10
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 100
	}
	if c.Postgres.ConnMaxLifetime == 0 {
		c.Postgres.ConnMaxLifetime = time.Hour
	}
	if c.Order.TxTimeout == 0 {
		c.Order.TxTimeout = 30 * time.Second
	}
	if c.Order.MaxRetries < 0 {
		c.Order.MaxRetries = 3
	}
	if c.Order.PricePolicy == "" {
		c.Order.PricePolicy = "refresh_on_change"
	}
	if c.Receipt.Sink == "" {
		c.Receipt.Sink = "log"
	}
	if c.Receipt.Timeout == 0 {
		c.Receipt.Timeout = 5 * time.Second
	}
	if c.Receipt.Retries < 0 {
		c.Receipt.Retries = 2
	}
	if c.Revenue.Timezone == "" {
		c.Revenue.Timezone = "UTC"
	}
	if c.Revenue.TopItems == 0 {
		c.Revenue.TopItems = 10
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "receipts"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "receipt.print"
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "receipt_printer"
	}
	if c.Printer.Timeout == 0 {
		c.Printer.Timeout = 3 * time.Second
	}
}
