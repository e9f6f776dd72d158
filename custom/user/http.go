package user

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

type CreateUsersRequest struct {
	Users *[]model.User `json:"users"`
}

type UserIdRequest struct {
	ID uint `json:"id"`
}

func (ctx *HandlerContext) InitialHandlerContext(st store.Store, txPolicy store.TxPolicy) {
	ctx.st = st
	ctx.txPolicy = txPolicy
}

func validateUser(index int, user model.User) string {
	validationErr := ""
	if user.Username == "" {
		validationErr += fmt.Sprintf("The %d username is required.", index+1)
	}
	if user.FullName == "" {
		validationErr += fmt.Sprintf("The %d full name is required.", index+1)
	}
	if user.Role != "" && !util.Contains(constants.USER_ROLES, user.Role) {
		validationErr += fmt.Sprintf("The %d role %s is invalid.", index+1, user.Role)
	}
	return validationErr
}

// CreateUsers Register staff accounts
func (ctx *HandlerContext) CreateUsers(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost}, w, r) {
		return
	}

	req := CreateUsersRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Create users failed")
		return
	}
	if req.Users == nil || len(*req.Users) == 0 {
		util.WriteError(w, app_error.Validation("users are required"), "Create users failed")
		return
	}
	validationErr := ""
	for i, user := range *req.Users {
		validationErr += validateUser(i, user)
	}
	if validationErr != "" {
		util.WriteError(w, app_error.Validation(validationErr), "Create users failed")
		return
	}

	created := make([]model.User, 0, len(*req.Users))
	err := store.RunInTx(r.Context(), ctx.st, ctx.txPolicy, "create users", func(c context.Context, tx store.Store) error {
		created = created[:0]
		for _, user := range *req.Users {
			if _, errFind := tx.Users().FindByUsername(c, user.Username); errFind == nil {
				return app_error.Conflict(user.Username + ": " + constants.USER_EXISTS)
			} else if !store.IsNotFound(errFind) {
				return errFind
			}
			user.ID = 0
			user.DeletedAt = nil
			if user.Role == "" {
				user.Role = constants.USER_ROLE_STAFF
			}
			if errCreate := tx.Users().Create(c, &user); errCreate != nil {
				return errCreate
			}
			created = append(created, user)
		}
		return nil
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			err = app_error.Conflict(constants.USER_EXISTS)
		}
		util.WriteError(w, util.ToAppError(err, constants.USER_NOT_FOUND), "Create users failed")
		return
	}
	util.WriteSuccess(w, created, "create users success.")
}

// QueryUser Fetch one user, or every live user when no id is given
func (ctx *HandlerContext) QueryUser(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodGet}, w, r) {
		return
	}
	if r.URL.Query().Get("id") == "" {
		users, err := ctx.st.Users().List(r.Context(), store.QueryOptions{})
		if err != nil {
			util.WriteError(w, util.ToAppError(err, constants.USER_NOT_FOUND), "Query users failed")
			return
		}
		util.WriteSuccess(w, users, "query users success.")
		return
	}
	id, err := util.QueryUint(r, "id")
	if err != nil {
		util.WriteError(w, err, "Query user failed")
		return
	}
	user, err := ctx.st.Users().FindByID(r.Context(), id, store.QueryOptions{})
	if err != nil {
		util.WriteError(w, util.ToAppError(err, constants.USER_NOT_FOUND), "Query user failed")
		return
	}
	util.WriteSuccess(w, user, "query user success.")
}

func (ctx *HandlerContext) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if !util.IsAllowHttpMethod([]string{http.MethodPost, http.MethodDelete}, w, r) {
		return
	}
	req := UserIdRequest{}
	if err := util.FetchReqObject(r, &req); err != nil {
		util.WriteError(w, err, "Delete user failed")
		return
	}
	if req.ID == 0 {
		util.WriteError(w, app_error.Validation("user id is required"), "Delete user failed")
		return
	}
	if err := ctx.st.Users().SoftDelete(r.Context(), req.ID, time.Now()); err != nil {
		util.WriteError(w, util.ToAppError(err, constants.USER_NOT_FOUND), "Delete user failed")
		return
	}
	util.WriteSuccess(w, nil, "delete user success.")
}
