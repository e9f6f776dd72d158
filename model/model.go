package model

import (
	"time"

	"github.com/shopspring/decimal"
)

var ALL_POS_TABLES []interface{} = []interface{}{
	Category{}, User{}, MenuItem{}, Table{}, Order{}, OrderItem{}, Payment{},
}

type Category struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name" gorm:"not null;uniqueIndex:idx_categories_name_live,where:deleted_at IS NULL"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdTime"`
	UpdatedAt   time.Time  `json:"updatedTime"`
	DeletedAt   *time.Time `json:"deletedTime,omitempty" gorm:"index"`
}

type User struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Username  string     `json:"username" gorm:"not null;uniqueIndex:idx_users_username_live,where:deleted_at IS NULL"`
	FullName  string     `json:"full_name" gorm:"not null"`
	Role      string     `json:"role" gorm:"type:varchar(16);not null"`
	CreatedAt time.Time  `json:"createdTime"`
	UpdatedAt time.Time  `json:"updatedTime"`
	DeletedAt *time.Time `json:"deletedTime,omitempty" gorm:"index"`
}

type MenuItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"index;not null"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	CategoryID  uint            `json:"category_id" gorm:"index;not null"`
	Category    *Category       `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Image       *string         `json:"image,omitempty"`
	Active      bool            `json:"active" gorm:"not null"`
	CreatedAt   time.Time       `json:"createdTime"`
	UpdatedAt   time.Time       `json:"updatedTime"`
	DeletedAt   *time.Time      `json:"deletedTime,omitempty" gorm:"index"`
}

type Table struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Number    int        `json:"number" gorm:"not null;uniqueIndex:idx_tables_number_live,where:deleted_at IS NULL"`
	Capacity  int        `json:"capacity" gorm:"not null"`
	Status    string     `json:"status" gorm:"type:varchar(16);not null"`
	Orders    []Order    `json:"orders,omitempty" gorm:"foreignKey:TableID"`
	CreatedAt time.Time  `json:"createdTime"`
	UpdatedAt time.Time  `json:"updatedTime"`
	DeletedAt *time.Time `json:"deletedTime,omitempty" gorm:"index"`
}

type Order struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	OrderNumber string          `json:"order_number" gorm:"uniqueIndex;not null"`
	TableID     uint            `json:"table_id" gorm:"index;not null"`
	Table       *Table          `json:"table,omitempty" gorm:"foreignKey:TableID"`
	UserID      uint            `json:"user_id" gorm:"index;not null"`
	User        *User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	Status      string          `json:"status" gorm:"type:varchar(16);index;not null"`
	StartTime   time.Time       `json:"start_time" gorm:"not null"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	Items       []OrderItem     `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	Payment     *Payment        `json:"payment,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt   time.Time       `json:"createdTime" gorm:"index"`
	UpdatedAt   time.Time       `json:"updatedTime"`
	DeletedAt   *time.Time      `json:"deletedTime,omitempty" gorm:"index"`
}

type OrderItem struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	OrderID    uint            `json:"order_id" gorm:"index;not null"`
	MenuItemID uint            `json:"menu_item_id" gorm:"index;not null"`
	MenuItem   *MenuItem       `json:"menu_item,omitempty" gorm:"foreignKey:MenuItemID"`
	Quantity   int             `json:"quantity" gorm:"not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Notes      *string         `json:"notes,omitempty" gorm:"type:varchar(500)"`
	CreatedAt  time.Time       `json:"createdTime"`
	UpdatedAt  time.Time       `json:"updatedTime"`
	DeletedAt  *time.Time      `json:"deletedTime,omitempty" gorm:"index"`
}

// Subtotal is price × quantity of the line.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Payment struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   uint            `json:"order_id" gorm:"uniqueIndex;not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Method    string          `json:"method" gorm:"type:varchar(16);not null"`
	Status    string          `json:"status" gorm:"type:varchar(16);not null"`
	CashierID *uint           `json:"cashier_id,omitempty"`
	CreatedAt time.Time       `json:"createdTime"`
}

// Invoice is computed at generation time and never stored.
type Invoice struct {
	OrderNumber   string          `json:"order_number"`
	Date          time.Time       `json:"date"`
	TableNumber   int             `json:"table_number"`
	Items         []InvoiceLine   `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	Cashier       string          `json:"cashier"`
}

type InvoiceLine struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Notes    *string         `json:"notes,omitempty"`
}
