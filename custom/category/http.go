package category

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"restaurant_pos/constants"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/store"
	"restaurant_pos/custom/util"
	"restaurant_pos/model"
)

type HandlerContext struct {
	st       store.Store
	txPolicy store.TxPolicy
}

type CreateCategoriesRequest struct {
	Categories *[]model.Category `json:"categories"`
}

type UpdateCategoryRequest struct {
	ID          uint    `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CategoryIdRequest struct {
	ID uint `json:"id"`
}

func (ctx *HandlerContext) InitialHandlerContext(st store.Store, txPolicy store.TxPolicy) {
	ctx.st = st
	ctx.txPolicy = txPolicy
}

func conflictOr(err error) error {
	if store.IsUniqueViolation(err) {
		return app_error.Conflict(constants.CATEGORY_EXISTS)
	}
	return util.ToAppError(err, constants.CATEGORY_NOT_FOUND)
}

// CreateCategories Create new categories in one transaction
func (ctx *HandlerContext) CreateCategories(w http.ResponseWriter, r *http.Request) {
	// Validate http method
	if !util.IsAllowHttpMethod([]string{http.MethodPost}, w, r) {
		return
	}

	req := CreateCategoriesRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Create categories failed")
		return
	}

	// Validate payload
	if req.Categories == nil || len(*req.Categories) == 0 {
		util.WriteError(w, app_error.Validation("categories are required"), "Create categories failed")
		return
	}
	validationErr := ""
	for i := range *req.Categories {
		if (*req.Categories)[i].Name == "" {
			validationErr += fmt.Sprintf("The %d category name is required.", i+1)
		}
	}
	if validationErr != "" {
		util.WriteError(w, app_error.Validation(validationErr), "Create categories failed")
		return
	}

	created := make([]model.Category, 0, len(*req.Categories))
	err := store.RunInTx(r.Context(), ctx.st, ctx.txPolicy, "create categories", func(c context.Context, tx store.Store) error {
		created = created[:0]
		for _, category := range *req.Categories {
			category.ID = 0
			category.DeletedAt = nil
			if errCreate := tx.Categories().Create(c, &category); errCreate != nil {
				if store.IsUniqueViolation(errCreate) {
					return app_error.Conflict(category.Name + ": " + constants.CATEGORY_EXISTS)
				}
				return errCreate
			}
			created = append(created, category)
		}
		return nil
	})
	if err != nil {
		util.WriteError(w, conflictOr(err), "Create categories failed")
		return
	}
	util.WriteSuccess(w, created, "create categories success.")
}

// QueryCategory Fetch one category, or all live categories when no id is given
func (ctx *HandlerContext) QueryCategory(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodGet}, w, r) {
		return
	}
	if r.URL.Query().Get("id") == "" {
		categories, err := ctx.st.Categories().List(r.Context(), store.QueryOptions{})
		if err != nil {
			util.WriteError(w, conflictOr(err), "Query categories failed")
			return
		}
		util.WriteSuccess(w, categories, "query categories success.")
		return
	}
	id, err := util.QueryUint(r, "id")
	if err != nil {
		util.WriteError(w, err, "Query category failed")
		return
	}
	category, err := ctx.st.Categories().FindByID(r.Context(), id, store.QueryOptions{})
	if err != nil {
		util.WriteError(w, conflictOr(err), "Query category failed")
		return
	}
	util.WriteSuccess(w, category, "query category success.")
}

func (ctx *HandlerContext) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost, http.MethodPut}, w, r) {
		return
	}
	req := UpdateCategoryRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Update category failed")
		return
	}
	if req.ID == 0 {
		util.WriteError(w, app_error.Validation("category id is required"), "Update category failed")
		return
	}
	fields := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			util.WriteError(w, app_error.Validation("category name is required"), "Update category failed")
			return
		}
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = req.Description
	}
	if len(fields) == 0 {
		util.WriteError(w, app_error.Validation("nothing to update"), "Update category failed")
		return
	}

	var updated *model.Category
	err := store.RunInTx(r.Context(), ctx.st, ctx.txPolicy, "update category", func(c context.Context, tx store.Store) error {
		if req.Name != nil {
			existing, errFind := tx.Categories().FindByName(c, *req.Name)
			if errFind == nil && existing.ID != req.ID {
				return app_error.Conflict(constants.CATEGORY_EXISTS)
			}
			if errFind != nil && !store.IsNotFound(errFind) {
				return errFind
			}
		}
		if errUpdate := tx.Categories().Update(c, req.ID, fields); errUpdate != nil {
			return errUpdate
		}
		var errFind error
		updated, errFind = tx.Categories().FindByID(c, req.ID, store.QueryOptions{})
		return errFind
	})
	if err != nil {
		util.WriteError(w, conflictOr(err), "Update category failed")
		return
	}
	util.WriteSuccess(w, updated, "update category success.")
}

// DeleteCategory Soft delete a category. Menu items keep pointing at it.
func (ctx *HandlerContext) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost, http.MethodDelete}, w, r) {
		return
	}
	req := CategoryIdRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Delete category failed")
		return
	}
	if req.ID == 0 {
		util.WriteError(w, app_error.Validation("category id is required"), "Delete category failed")
		return
	}
	if err := ctx.st.Categories().SoftDelete(r.Context(), req.ID, time.Now()); err != nil {
		util.WriteError(w, conflictOr(err), "Delete category failed")
		return
	}
	util.WriteSuccess(w, nil, "delete category success.")
}
