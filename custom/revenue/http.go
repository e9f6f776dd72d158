package revenue

import (
	"net/http"
	"time"

	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/util"
)

const DATE_LAYOUT = "2006-01-02"

type HandlerContext struct {
	service *Service
}

func (ctx *HandlerContext) InitialHandlerContext(service *Service) {
	ctx.service = service
}

// parseBound accepts RFC3339 or a plain date. A plain end date covers the whole day.
func (ctx *HandlerContext) parseBound(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	day, err := time.ParseInLocation(DATE_LAYOUT, raw, ctx.service.Location())
	if err != nil {
		return nil, app_error.Validation("invalid time " + raw)
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}

// QueryRevenue Revenue dashboard by period or explicit range
func (ctx *HandlerContext) QueryRevenue(w http.ResponseWriter, r *http.Request) {
	// Validate http method
	if !util.IsAllowHttpMethod([]string{http.MethodGet}, w, r) {
		return
	}
	query := r.URL.Query()
	start, err := ctx.parseBound(query.Get("start"), false)
	if err != nil {
		util.WriteError(w, err, "Query revenue failed")
		return
	}
	end, err := ctx.parseBound(query.Get("end"), true)
	if err != nil {
		util.WriteError(w, err, "Query revenue failed")
		return
	}

	report, err := ctx.service.Report(r.Context(), Query{Period: query.Get("period"), Start: start, End: end})
	if err != nil {
		util.WriteError(w, err, "Query revenue failed")
		return
	}
	util.WriteSuccess(w, report, "query revenue success.")
}
