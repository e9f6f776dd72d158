package constants

// Table Status
const TABLE_STATUS_AVAILABLE = "AVAILABLE"
const TABLE_STATUS_OCCUPIED = "OCCUPIED"
const TABLE_STATUS_RESERVED = "RESERVED"

// Order Status
const ORDER_STATUS_PENDING = "PENDING"
const ORDER_STATUS_PREPARING = "PREPARING"
const ORDER_STATUS_COMPLETED = "COMPLETED"

// Payment Method
const PAYMENT_METHOD_CASH = "CASH"
const PAYMENT_METHOD_CARD = "CARD"
const PAYMENT_METHOD_BANK_TRANSFER = "BANK_TRANSFER"
const PAYMENT_METHOD_E_WALLET = "E_WALLET"

// Payment Status
const PAYMENT_STATUS_COMPLETED = "COMPLETED"

// User Role
const USER_ROLE_ADMIN = "ADMIN"
const USER_ROLE_STAFF = "STAFF"

// Reconcile Price Policy
const PRICE_POLICY_REFRESH_ON_CHANGE = "refresh_on_change"
const PRICE_POLICY_KEEP_SNAPSHOT = "keep_snapshot"

// Limits
const MAX_NOTES_LENGTH = 500
const ORDER_NUMBER_PREFIX = "ORD"

// Error responses
const TABLE_NOT_FOUND = "table not found"
const TABLE_NOT_AVAILABLE = "table is not available"
const TABLE_NUMBER_EXISTS = "table number already exists"
const ORDER_NOT_FOUND = "order not found"
const ORDER_ALREADY_COMPLETED = "order is already completed"
const ORDER_NOT_MODIFIABLE = "order can no longer be modified"
const ITEMS_UNAVAILABLE = "some menu items are not available"
const ITEMS_REQUIRED = "at least one item is required"
const ITEMS_DUPLICATED = "a menu item may appear only once"
const INVALID_QUANTITY = "quantity must be at least 1"
const NOTES_TOO_LONG = "notes must be at most 500 characters"
const INVALID_ORDER_STATUS = "invalid order status transition"
const INVALID_PRICE_POLICY = "invalid price policy"
const MENU_ITEM_NOT_FOUND = "menu item not found"
const CATEGORY_NOT_FOUND = "category not found"
const CATEGORY_EXISTS = "category already exists"
const USER_NOT_FOUND = "user not found"
const USER_EXISTS = "username already exists"
const INVALID_PAYMENT_METHOD = "invalid payment method"
const PAYMENT_NOT_FOUND = "payment not found"
const RECORD_EXISTS = "record already exists"
const TRANSACTION_TIMEOUT = "transaction timed out, please retry"
const SYSTEM_ERROR = "unexpected system error"

var PAYMENT_METHODS = []string{
	PAYMENT_METHOD_CASH, PAYMENT_METHOD_CARD, PAYMENT_METHOD_BANK_TRANSFER, PAYMENT_METHOD_E_WALLET,
}

var TABLE_STATUSES = []string{
	TABLE_STATUS_AVAILABLE, TABLE_STATUS_OCCUPIED, TABLE_STATUS_RESERVED,
}

var USER_ROLES = []string{
	USER_ROLE_ADMIN, USER_ROLE_STAFF,
}
