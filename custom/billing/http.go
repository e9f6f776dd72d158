package billing

import (
	"net/http"

	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/util"
)

type HandlerContext struct {
	service *Service
}

type GenerateInvoiceRequest struct {
	OrderId       uint   `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
}

func (ctx *HandlerContext) InitialHandlerContext(service *Service) {
	ctx.service = service
}

// GenerateInvoice Take payment for an open order and print its receipt
func (ctx *HandlerContext) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	// Validate http method
	if !util.IsAllowHttpMethod([]string{http.MethodPost}, w, r) {
		return
	}
	userId, err := util.UserIdFromRequest(r)
	if err != nil {
		util.WriteError(w, err, "Generate invoice failed")
		return
	}

	req := GenerateInvoiceRequest{}
	if err = util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Generate invoice failed")
		return
	}
	if req.OrderId == 0 {
		util.WriteError(w, app_error.Validation("order id is required"), "Generate invoice failed")
		return
	}

	result, err := ctx.service.GenerateInvoice(r.Context(), userId, req.OrderId, req.PaymentMethod)
	if err != nil {
		util.WriteError(w, err, "Generate invoice failed")
		return
	}
	util.WriteSuccess(w, result, "generate invoice success.")
}

// ReprintInvoice Print the receipt of a settled order again
func (ctx *HandlerContext) ReprintInvoice(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodGet, http.MethodPost}, w, r) {
		return
	}
	orderId, err := util.QueryUint(r, "order_id")
	if err != nil {
		util.WriteError(w, err, "Reprint invoice failed")
		return
	}

	result, err := ctx.service.Reprint(r.Context(), orderId)
	if err != nil {
		util.WriteError(w, err, "Reprint invoice failed")
		return
	}
	util.WriteSuccess(w, result, "reprint invoice success.")
}
