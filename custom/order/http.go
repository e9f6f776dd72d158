package order

import (
	"net/http"

	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/util"
)

var (
	errOrderIdRequired = app_error.Validation("order id is required")
	errTableIdRequired = app_error.Validation("table id is required")
)

type HandlerContext struct {
	service *Service
}

type CreateOrderRequest struct {
	TableId uint          `json:"table_id"`
	Items   []LineRequest `json:"items"`
}

type ReconcileItemsRequest struct {
	OrderId     uint          `json:"order_id"`
	Items       []LineRequest `json:"items"`
	PricePolicy string        `json:"price_policy,omitempty"`
}

type OrderIdRequest struct {
	ID uint `json:"id"`
}

type UpdateStatusRequest struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
}

func (ctx *HandlerContext) InitialHandlerContext(service *Service) {
	ctx.service = service
}

// CreateOrder Open a new order on a table
func (ctx *HandlerContext) CreateOrder(w http.ResponseWriter, r *http.Request) {
	// Validate http method
	if !util.IsAllowHttpMethod([]string{http.MethodPost}, w, r) {
		return
	}
	userId, err := util.UserIdFromRequest(r)
	if err != nil {
		util.WriteError(w, err, "Create order failed")
		return
	}

	req := CreateOrderRequest{}
	if err = util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Create order failed")
		return
	}
	if req.TableId == 0 {
		util.WriteError(w, errTableIdRequired, "Create order failed")
		return
	}

	order, err := ctx.service.Create(r.Context(), userId, req.TableId, req.Items)
	if err != nil {
		util.WriteError(w, err, "Create order failed")
		return
	}
	util.WriteSuccess(w, order, "create order success.")
}

// ReconcileItems Replace the items of an open order
func (ctx *HandlerContext) ReconcileItems(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost, http.MethodPut}, w, r) {
		return
	}

	req := ReconcileItemsRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Update order items failed")
		return
	}
	if req.OrderId == 0 {
		util.WriteError(w, errOrderIdRequired, "Update order items failed")
		return
	}

	order, err := ctx.service.Reconcile(r.Context(), req.OrderId, req.Items, req.PricePolicy)
	if err != nil {
		util.WriteError(w, err, "Update order items failed")
		return
	}
	util.WriteSuccess(w, order, "update order items success.")
}

// QueryOrder Fetch order detail by order id
func (ctx *HandlerContext) QueryOrder(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodGet}, w, r) {
		return
	}
	orderId, err := util.QueryUint(r, "id")
	if err != nil {
		util.WriteError(w, err, "Query order failed")
		return
	}

	order, err := ctx.service.Get(r.Context(), orderId)
	if err != nil {
		util.WriteError(w, err, "Query order failed")
		return
	}
	util.WriteSuccess(w, order, "query order success.")
}

// QueryTableOrders List the open orders of a table, newest first
func (ctx *HandlerContext) QueryTableOrders(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodGet}, w, r) {
		return
	}
	tableId, err := util.QueryUint(r, "table_id")
	if err != nil {
		util.WriteError(w, err, "Query table orders failed")
		return
	}

	orders, err := ctx.service.ListByTable(r.Context(), tableId)
	if err != nil {
		util.WriteError(w, err, "Query table orders failed")
		return
	}
	util.WriteSuccess(w, orders, "query table orders success.")
}

// CompleteOrder Close an order and release its table
func (ctx *HandlerContext) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost}, w, r) {
		return
	}

	req := OrderIdRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Complete order failed")
		return
	}
	if req.ID == 0 {
		util.WriteError(w, errOrderIdRequired, "Complete order failed")
		return
	}

	order, err := ctx.service.Complete(r.Context(), req.ID)
	if err != nil {
		util.WriteError(w, err, "Complete order failed")
		return
	}
	util.WriteSuccess(w, order, "complete order success.")
}

// UpdateOrderStatus Move an order between PENDING and PREPARING
func (ctx *HandlerContext) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost, http.MethodPut}, w, r) {
		return
	}

	req := UpdateStatusRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Update order status failed")
		return
	}
	if req.ID == 0 {
		util.WriteError(w, errOrderIdRequired, "Update order status failed")
		return
	}

	order, err := ctx.service.UpdateStatus(r.Context(), req.ID, req.Status)
	if err != nil {
		util.WriteError(w, err, "Update order status failed")
		return
	}
	util.WriteSuccess(w, order, "update order status success.")
}
