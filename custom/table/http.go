package table

import (
	"net/http"

	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/util"
)

var errTableIdRequired = app_error.Validation("table id is required")

type HandlerContext struct {
	service *Service
}

type CreateTableRequest struct {
	Number   int `json:"number"`
	Capacity int `json:"capacity"`
}

type UpdateTableRequest struct {
	ID       uint `json:"id"`
	Number   *int `json:"number,omitempty"`
	Capacity *int `json:"capacity,omitempty"`
}

type OverrideStatusRequest struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
}

type TableIdRequest struct {
	ID uint `json:"id"`
}

func (ctx *HandlerContext) InitialHandlerContext(service *Service) {
	ctx.service = service
}

// CreateTable Register a new physical table
func (ctx *HandlerContext) CreateTable(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost}, w, r) {
		return
	}
	req := CreateTableRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Create table failed")
		return
	}
	table, err := ctx.service.Create(r.Context(), req.Number, req.Capacity)
	if err != nil {
		util.WriteError(w, err, "Create table failed")
		return
	}
	util.WriteSuccess(w, table, "create table success.")
}

// QueryTable Fetch one table with its open orders, or all tables when no id is given
func (ctx *HandlerContext) QueryTable(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodGet}, w, r) {
		return
	}
	if r.URL.Query().Get("id") == "" {
		tables, err := ctx.service.List(r.Context())
		if err != nil {
			util.WriteError(w, err, "Query tables failed")
			return
		}
		util.WriteSuccess(w, tables, "query tables success.")
		return
	}
	id, err := util.QueryUint(r, "id")
	if err != nil {
		util.WriteError(w, err, "Query table failed")
		return
	}
	table, err := ctx.service.Get(r.Context(), id)
	if err != nil {
		util.WriteError(w, err, "Query table failed")
		return
	}
	util.WriteSuccess(w, table, "query table success.")
}

func (ctx *HandlerContext) UpdateTable(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost, http.MethodPut}, w, r) {
		return
	}
	req := UpdateTableRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Update table failed")
		return
	}
	if req.ID == 0 {
		util.WriteError(w, errTableIdRequired, "Update table failed")
		return
	}
	table, err := ctx.service.Update(r.Context(), req.ID, req.Number, req.Capacity)
	if err != nil {
		util.WriteError(w, err, "Update table failed")
		return
	}
	util.WriteSuccess(w, table, "update table success.")
}

// OverrideTableStatus Admin-only direct status write
func (ctx *HandlerContext) OverrideTableStatus(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost, http.MethodPut}, w, r) {
		return
	}
	req := OverrideStatusRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Override table status failed")
		return
	}
	if req.ID == 0 {
		util.WriteError(w, errTableIdRequired, "Override table status failed")
		return
	}
	table, err := ctx.service.OverrideStatus(r.Context(), req.ID, req.Status)
	if err != nil {
		util.WriteError(w, err, "Override table status failed")
		return
	}
	util.WriteSuccess(w, table, "override table status success.")
}

func (ctx *HandlerContext) DeleteTable(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost, http.MethodDelete}, w, r) {
		return
	}
	req := TableIdRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Delete table failed")
		return
	}
	if req.ID == 0 {
		util.WriteError(w, errTableIdRequired, "Delete table failed")
		return
	}
	if err := ctx.service.Delete(r.Context(), req.ID); err != nil {
		util.WriteError(w, err, "Delete table failed")
		return
	}
	util.WriteSuccess(w, nil, "delete table success.")
}

// QueryCurrentOrder Fetch the open order of a table and how long it has been running
func (ctx *HandlerContext) QueryCurrentOrder(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodGet}, w, r) {
		return
	}
	id, err := util.QueryUint(r, "id")
	if err != nil {
		util.WriteError(w, err, "Query current order failed")
		return
	}
	current, err := ctx.service.CurrentOrder(r.Context(), id)
	if err != nil {
		util.WriteError(w, err, "Query current order failed")
		return
	}
	util.WriteSuccess(w, current, "query current order success.")
}
