package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/romana/rlog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
	"restaurant_pos/constants"
	"restaurant_pos/model"
)

type Options struct {
	// Driver selects the database/sql driver behind gorm: "pgx" (default) or "pq".
	Driver          string
	DSN             string
	ReplicaDSNs     []string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

func dialector(driver, dsn string) gorm.Dialector {
	if driver == "pq" {
		return postgres.New(postgres.Config{DriverName: "postgres", DSN: dsn})
	}
	return postgres.Open(dsn)
}

// Open connects to Postgres and registers read replicas when configured.
func Open(opts Options) (*gorm.DB, error) {
	logLevel := opts.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}
	db, err := gorm.Open(dialector(opts.Driver, opts.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}
	if len(opts.ReplicaDSNs) > 0 {
		replicas := make([]gorm.Dialector, 0, len(opts.ReplicaDSNs))
		for _, dsn := range opts.ReplicaDSNs {
			replicas = append(replicas, dialector(opts.Driver, dsn))
		}
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, err
		}
		rlog.Infof("Registered %d read replicas", len(replicas))
	}
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.ALL_POS_TABLES...)
}

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Categories() CategoryRepository {
	return &gormCategoryRepo{gormCrud[model.Category]{db: s.db}}
}

func (s *gormStore) Users() UserRepository {
	return &gormUserRepo{gormCrud[model.User]{db: s.db}}
}

func (s *gormStore) Menu() MenuRepository {
	return &gormMenuRepo{db: s.db}
}

func (s *gormStore) Tables() TableRepository {
	return &gormTableRepo{db: s.db}
}

func (s *gormStore) Orders() OrderRepository {
	return &gormOrderRepo{db: s.db}
}

func (s *gormStore) Payments() PaymentRepository {
	return &gormPaymentRepo{db: s.db}
}

func (s *gormStore) Revenue() RevenueRepository {
	return &gormRevenueRepo{db: s.db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Clauses(dbresolver.Write).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", ErrDuplicate, err.Error())
	}
	return err
}

func live(opts QueryOptions) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if opts.IncludeDeleted {
			return db
		}
		return db.Where("deleted_at IS NULL")
	}
}

func paginate(offset, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if offset > 0 {
			db = db.Offset(offset)
		}
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	}
}

func affected(result *gorm.DB) error {
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Reference data

type gormCrud[T any] struct {
	db *gorm.DB
}

func (r gormCrud[T]) Create(ctx context.Context, entity *T) error {
	return translate(r.db.WithContext(ctx).Create(entity).Error)
}

func (r gormCrud[T]) FindByID(ctx context.Context, id uint, opts QueryOptions) (*T, error) {
	var entity T
	err := r.db.WithContext(ctx).Scopes(live(opts)).Where("id = ?", id).First(&entity).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

func (r gormCrud[T]) List(ctx context.Context, opts QueryOptions) ([]T, error) {
	entities := make([]T, 0)
	err := r.db.WithContext(ctx).Scopes(live(opts), paginate(opts.Offset, opts.Limit)).Order("id").Find(&entities).Error
	return entities, translate(err)
}

func (r gormCrud[T]) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	var zero T
	return affected(r.db.WithContext(ctx).Model(&zero).Where("id = ? AND deleted_at IS NULL", id).Updates(fields))
}

func (r gormCrud[T]) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	var zero T
	return affected(r.db.WithContext(ctx).Model(&zero).Where("id = ? AND deleted_at IS NULL", id).Update("deleted_at", at))
}

type gormCategoryRepo struct {
	gormCrud[model.Category]
}

func (r *gormCategoryRepo) FindByName(ctx context.Context, name string) (*model.Category, error) {
	category := model.Category{}
	err := r.db.WithContext(ctx).Where("name = ? AND deleted_at IS NULL", name).First(&category).Error
	if err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

type gormUserRepo struct {
	gormCrud[model.User]
}

func (r *gormUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user := model.User{}
	err := r.db.WithContext(ctx).Where("username = ? AND deleted_at IS NULL", username).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// Menu

type gormMenuRepo struct {
	db *gorm.DB
}

func (r *gormMenuRepo) Create(ctx context.Context, item *model.MenuItem) error {
	return translate(r.db.WithContext(ctx).Omit("Category").Create(item).Error)
}

func (r *gormMenuRepo) FindByID(ctx context.Context, id uint, opts QueryOptions) (*model.MenuItem, error) {
	item := model.MenuItem{}
	err := r.db.WithContext(ctx).Scopes(live(opts)).Preload("Category").Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *gormMenuRepo) FindAvailable(ctx context.Context, ids []uint) ([]model.MenuItem, error) {
	items := make([]model.MenuItem, 0)
	if len(ids) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ? AND active = ? AND deleted_at IS NULL", ids, true).
		Find(&items).Error
	return items, translate(err)
}

func (r *gormMenuRepo) Search(ctx context.Context, filter MenuFilter) ([]model.MenuItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.MenuItem{}).Where("deleted_at IS NULL")
	if filter.Name != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Name+"%")
	}
	if filter.CategoryID != 0 {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	items := make([]model.MenuItem, 0)
	err := query.Preload("Category").
		Scopes(paginate(filter.Offset, filter.Limit)).
		Order("created_at DESC").
		Find(&items).Error
	return items, total, translate(err)
}

func (r *gormMenuRepo) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return affected(r.db.WithContext(ctx).Model(&model.MenuItem{}).Where("id = ? AND deleted_at IS NULL", id).Updates(fields))
}

func (r *gormMenuRepo) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	return affected(r.db.WithContext(ctx).Model(&model.MenuItem{}).Where("id = ? AND deleted_at IS NULL", id).Update("deleted_at", at))
}

// Tables

type gormTableRepo struct {
	db *gorm.DB
}

func preloadActiveOrders(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Orders", func(db *gorm.DB) *gorm.DB {
			return db.Where("status <> ? AND deleted_at IS NULL", constants.ORDER_STATUS_COMPLETED).Order("created_at DESC")
		}).
		Preload("Orders.Items", func(db *gorm.DB) *gorm.DB {
			return db.Where("deleted_at IS NULL").Order("id")
		}).
		Preload("Orders.Items.MenuItem").
		Preload("Orders.User")
}

func (r *gormTableRepo) Create(ctx context.Context, table *model.Table) error {
	return translate(r.db.WithContext(ctx).Omit("Orders").Create(table).Error)
}

func (r *gormTableRepo) FindByID(ctx context.Context, id uint, opts QueryOptions) (*model.Table, error) {
	table := model.Table{}
	err := r.db.WithContext(ctx).Scopes(live(opts), preloadActiveOrders).Where("id = ?", id).First(&table).Error
	if err != nil {
		return nil, translate(err)
	}
	return &table, nil
}

func (r *gormTableRepo) LockByID(ctx context.Context, id uint) (*model.Table, error) {
	table := model.Table{}
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&table).Error
	if err != nil {
		return nil, translate(err)
	}
	return &table, nil
}

func (r *gormTableRepo) FindByNumber(ctx context.Context, number int, opts QueryOptions) (*model.Table, error) {
	table := model.Table{}
	err := r.db.WithContext(ctx).Scopes(live(opts)).Where("number = ?", number).First(&table).Error
	if err != nil {
		return nil, translate(err)
	}
	return &table, nil
}

func (r *gormTableRepo) List(ctx context.Context, opts QueryOptions) ([]model.Table, error) {
	tables := make([]model.Table, 0)
	err := r.db.WithContext(ctx).
		Scopes(live(opts), preloadActiveOrders, paginate(opts.Offset, opts.Limit)).
		Order("number").
		Find(&tables).Error
	return tables, translate(err)
}

func (r *gormTableRepo) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return affected(r.db.WithContext(ctx).Model(&model.Table{}).Where("id = ? AND deleted_at IS NULL", id).Updates(fields))
}

func (r *gormTableRepo) SetStatus(ctx context.Context, id uint, status string) error {
	return affected(r.db.WithContext(ctx).Model(&model.Table{}).Where("id = ? AND deleted_at IS NULL", id).Update("status", status))
}

func (r *gormTableRepo) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	return affected(r.db.WithContext(ctx).Model(&model.Table{}).Where("id = ? AND deleted_at IS NULL", id).Update("deleted_at", at))
}

// Orders

type gormOrderRepo struct {
	db *gorm.DB
}

func liveItems(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL").Order("id")
}

func (r *gormOrderRepo) Create(ctx context.Context, order *model.Order) error {
	return translate(r.db.WithContext(ctx).Omit("Table", "User", "Payment").Create(order).Error)
}

func (r *gormOrderRepo) FindByID(ctx context.Context, id uint, opts QueryOptions) (*model.Order, error) {
	order := model.Order{}
	err := r.db.WithContext(ctx).
		Scopes(live(opts)).
		Preload("Items", liveItems).
		Preload("Items.MenuItem").
		Preload("Table").
		Preload("User").
		Preload("Payment").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *gormOrderRepo) LockByID(ctx context.Context, id uint) (*model.Order, error) {
	order := model.Order{}
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *gormOrderRepo) ListActiveByTable(ctx context.Context, tableID uint) ([]model.Order, error) {
	orders := make([]model.Order, 0)
	err := r.db.WithContext(ctx).
		Where("table_id = ? AND status <> ? AND deleted_at IS NULL", tableID, constants.ORDER_STATUS_COMPLETED).
		Preload("Items", liveItems).
		Preload("Items.MenuItem").
		Preload("User").
		Order("created_at DESC").
		Find(&orders).Error
	return orders, translate(err)
}

func (r *gormOrderRepo) CountActiveByTable(ctx context.Context, tableID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("table_id = ? AND status <> ? AND deleted_at IS NULL", tableID, constants.ORDER_STATUS_COMPLETED).
		Count(&count).Error
	return count, translate(err)
}

func (r *gormOrderRepo) ActiveItems(ctx context.Context, orderID uint) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0)
	err := r.db.WithContext(ctx).Where("order_id = ? AND deleted_at IS NULL", orderID).Order("id").Find(&items).Error
	return items, translate(err)
}

func (r *gormOrderRepo) InsertItems(ctx context.Context, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Omit("MenuItem").Create(&items).Error)
}

func (r *gormOrderRepo) UpdateItem(ctx context.Context, itemID uint, fields map[string]interface{}) error {
	return affected(r.db.WithContext(ctx).Model(&model.OrderItem{}).Where("id = ? AND deleted_at IS NULL", itemID).Updates(fields))
}

func (r *gormOrderRepo) SoftDeleteItems(ctx context.Context, itemIDs []uint, at time.Time) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Where("id IN ? AND deleted_at IS NULL", itemIDs).
		Update("deleted_at", at).Error)
}

func (r *gormOrderRepo) UpdateTotal(ctx context.Context, id uint, total decimal.Decimal) error {
	return affected(r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Update("total_amount", total))
}

func (r *gormOrderRepo) SetStatus(ctx context.Context, id uint, status string, endTime *time.Time) error {
	fields := map[string]interface{}{"status": status}
	if endTime != nil {
		fields["end_time"] = *endTime
	}
	return affected(r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ? AND deleted_at IS NULL", id).Updates(fields))
}

// Payments

type gormPaymentRepo struct {
	db *gorm.DB
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error)
}

func (r *gormPaymentRepo) FindByOrderID(ctx context.Context, orderID uint) (*model.Payment, error) {
	payment := model.Payment{}
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}
