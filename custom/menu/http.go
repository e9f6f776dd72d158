package menu

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/romana/rlog"
	"github.com/shopspring/decimal"
	"restaurant_pos/constants"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/store"
	"restaurant_pos/custom/util"
	"restaurant_pos/model"
)

const DEFAULT_PAGE_SIZE = 20
const MAX_PAGE_SIZE = 100

type HandlerContext struct {
	st       store.Store
	txPolicy store.TxPolicy
}

type MenuItemInput struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  uint            `json:"category_id"`
	Image       *string         `json:"image,omitempty"`
	// Active defaults to true when omitted.
	Active *bool `json:"active,omitempty"`
}

type CreateMenuItemsRequest struct {
	MenuItems *[]MenuItemInput `json:"menu_items"`
}

type UpdateMenuItemRequest struct {
	ID          uint             `json:"id"`
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	CategoryID  *uint            `json:"category_id,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Active      *bool            `json:"active,omitempty"`
}

type MenuItemIdRequest struct {
	ID uint `json:"id"`
}

type SearchResult struct {
	Items    []model.MenuItem `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

func (ctx *HandlerContext) InitialHandlerContext(st store.Store, txPolicy store.TxPolicy) {
	ctx.st = st
	ctx.txPolicy = txPolicy
}

func ensureCategory(c context.Context, tx store.Store, categoryId uint) error {
	if _, err := tx.Categories().FindByID(c, categoryId, store.QueryOptions{}); err != nil {
		return util.ToAppError(err, constants.CATEGORY_NOT_FOUND)
	}
	return nil
}

// CreateMenuItems Create new menu items
func (ctx *HandlerContext) CreateMenuItems(w http.ResponseWriter, r *http.Request) {
	// Validate http method
	if !util.IsAllowHttpMethod([]string{http.MethodPost}, w, r) {
		return
	}

	req := CreateMenuItemsRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Create menu items failed")
		return
	}

	// Validate Payload
	if req.MenuItems == nil || len(*req.MenuItems) == 0 {
		util.WriteError(w, app_error.Validation("menu items are required"), "Create menu items failed")
		return
	}
	validationErr := ""
	for i := range *req.MenuItems {
		item := &(*req.MenuItems)[i]
		// Prices are stored in cents, so a sub-cent price rounds to zero and is rejected.
		item.Price = item.Price.Round(2)
		if item.Name == "" {
			validationErr += fmt.Sprintf("The %d menu item name is required.", i+1)
		}
		if !item.Price.IsPositive() {
			validationErr += fmt.Sprintf("The %d menu item price must be positive.", i+1)
		}
		if item.CategoryID == 0 {
			validationErr += fmt.Sprintf("The %d menu item category is required.", i+1)
		}
	}
	if validationErr != "" {
		util.WriteError(w, app_error.Validation(validationErr), "Create menu items failed")
		return
	}

	createdItems := make([]model.MenuItem, 0, len(*req.MenuItems))
	err := store.RunInTx(r.Context(), ctx.st, ctx.txPolicy, "create menu items", func(c context.Context, tx store.Store) error {
		createdItems = createdItems[:0]
		for _, input := range *req.MenuItems {
			if errCategory := ensureCategory(c, tx, input.CategoryID); errCategory != nil {
				return errCategory
			}
			item := model.MenuItem{
				Name:        input.Name,
				Description: input.Description,
				Price:       input.Price,
				CategoryID:  input.CategoryID,
				Image:       input.Image,
				Active:      input.Active == nil || *input.Active,
			}
			if errCreate := tx.Menu().Create(c, &item); errCreate != nil {
				return errCreate
			}
			createdItems = append(createdItems, item)
		}
		return nil
	})
	if err != nil {
		util.WriteError(w, util.ToAppError(err, constants.MENU_ITEM_NOT_FOUND), "Create menu items failed")
		return
	}
	rlog.Infof("Created %d menu items", len(createdItems))
	util.WriteSuccess(w, createdItems, "create menu items success.")
}

// QueryMenuItem Fetch a menu item by id
func (ctx *HandlerContext) QueryMenuItem(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodGet}, w, r) {
		return
	}
	id, err := util.QueryUint(r, "id")
	if err != nil {
		util.WriteError(w, err, "Query menu item failed")
		return
	}
	item, err := ctx.st.Menu().FindByID(r.Context(), id, store.QueryOptions{})
	if err != nil {
		util.WriteError(w, util.ToAppError(err, constants.MENU_ITEM_NOT_FOUND), "Query menu item failed")
		return
	}
	util.WriteSuccess(w, item, "query menu item success.")
}

func intParam(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, app_error.Validation(key + " must be a positive integer")
	}
	return value, nil
}

func filterFromRequest(r *http.Request) (store.MenuFilter, int, int, error) {
	query := r.URL.Query()
	filter := store.MenuFilter{Name: query.Get("name")}
	if raw := query.Get("category_id"); raw != "" {
		categoryId, err := util.QueryUint(r, "category_id")
		if err != nil {
			return filter, 0, 0, err
		}
		filter.CategoryID = categoryId
	}
	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, 0, 0, app_error.Validation("active must be true or false")
		}
		filter.Active = &active
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		return filter, 0, 0, err
	}
	pageSize, err := intParam(r, "page_size", DEFAULT_PAGE_SIZE)
	if err != nil {
		return filter, 0, 0, err
	}
	if pageSize > MAX_PAGE_SIZE {
		pageSize = MAX_PAGE_SIZE
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, page, pageSize, nil
}

// SearchMenuItems Filter menu items by name, category and availability
func (ctx *HandlerContext) SearchMenuItems(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodGet}, w, r) {
		return
	}
	filter, page, pageSize, err := filterFromRequest(r)
	if err != nil {
		util.WriteError(w, err, "Search menu items failed")
		return
	}
	items, total, err := ctx.st.Menu().Search(r.Context(), filter)
	if err != nil {
		util.WriteError(w, util.ToAppError(err, constants.MENU_ITEM_NOT_FOUND), "Search menu items failed")
		return
	}
	util.WriteSuccess(w, SearchResult{Items: items, Total: total, Page: page, PageSize: pageSize}, "search menu items success.")
}

// UpdateMenuItem Edit a menu item. Existing order lines keep their snapshot price.
func (ctx *HandlerContext) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost, http.MethodPut}, w, r) {
		return
	}
	req := UpdateMenuItemRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Update menu item failed")
		return
	}
	if req.ID == 0 {
		util.WriteError(w, app_error.Validation("menu item id is required"), "Update menu item failed")
		return
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			util.WriteError(w, app_error.Validation("menu item name is required"), "Update menu item failed")
			return
		}
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = req.Description
	}
	if req.Price != nil {
		price := req.Price.Round(2)
		if !price.IsPositive() {
			util.WriteError(w, app_error.Validation("menu item price must be positive"), "Update menu item failed")
			return
		}
		fields["price"] = price
	}
	if req.CategoryID != nil {
		fields["category_id"] = *req.CategoryID
	}
	if req.Image != nil {
		fields["image"] = req.Image
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	if len(fields) == 0 {
		util.WriteError(w, app_error.Validation("nothing to update"), "Update menu item failed")
		return
	}

	var updated *model.MenuItem
	err := store.RunInTx(r.Context(), ctx.st, ctx.txPolicy, "update menu item", func(c context.Context, tx store.Store) error {
		if req.CategoryID != nil {
			if errCategory := ensureCategory(c, tx, *req.CategoryID); errCategory != nil {
				return errCategory
			}
		}
		if errUpdate := tx.Menu().Update(c, req.ID, fields); errUpdate != nil {
			return errUpdate
		}
		var errFind error
		updated, errFind = tx.Menu().FindByID(c, req.ID, store.QueryOptions{})
		return errFind
	})
	if err != nil {
		util.WriteError(w, util.ToAppError(err, constants.MENU_ITEM_NOT_FOUND), "Update menu item failed")
		return
	}
	util.WriteSuccess(w, updated, "update menu item success.")
}

// DeleteMenuItem Soft delete a menu item so past orders still resolve it
func (ctx *HandlerContext) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost, http.MethodDelete}, w, r) {
		return
	}
	req := MenuItemIdRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Delete menu item failed")
		return
	}
	if req.ID == 0 {
		util.WriteError(w, app_error.Validation("menu item id is required"), "Delete menu item failed")
		return
	}
	if err := ctx.st.Menu().SoftDelete(r.Context(), req.ID, time.Now()); err != nil {
		util.WriteError(w, util.ToAppError(err, constants.MENU_ITEM_NOT_FOUND), "Delete menu item failed")
		return
	}
	util.WriteSuccess(w, nil, "delete menu item success.")
}
