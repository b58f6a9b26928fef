package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/service"
	"shopdesk/backend/internal/store"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("Too many login attempts. Please try again later."))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("Too many login attempts. Please try again later."))
		return
	}

	var req domain.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	if err := a.auth.ChangePassword(r.Context(), req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeMessage(w, "Password changed successfully", nil)
}

func (a *API) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	if !a.otpLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("Too many OTP requests. Please try again later."))
		return
	}

	var req domain.SendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	message, err := a.auth.SendOTP(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeMessage(w, message, nil)
}

func (a *API) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	if !a.otpLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("Too many OTP requests. Please try again later."))
		return
	}

	var req domain.VerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	if err := a.auth.ResetPassword(r.Context(), req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeMessage(w, "Password has been reset successfully", nil)
}

// resource serves the list/get/create/update/delete routes shared by the
// simple entities. T is the stored entity and R its request body.
type resource[T any, R any] struct {
	api     *API
	prefix  string
	entity  string
	list    func(ctx context.Context) ([]T, error)
	get     func(ctx context.Context, id int) (T, error)
	create  func(ctx context.Context, req R) (T, error)
	update  func(ctx context.Context, id int, req R) (T, error)
	remove  func(ctx context.Context, id int) error
	created string
	updated string
	deleted string
}

func (res resource[T, R]) collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := res.list(r.Context())
		if err != nil {
			res.api.writeServiceError(w, err)
			return
		}
		writeData(w, items)
	case http.MethodPost:
		var req R
		if err := decodeJSON(r, &req); err != nil {
			res.api.writeServiceError(w, err)
			return
		}
		item, err := res.create(r.Context(), req)
		if err != nil {
			res.api.writeServiceError(w, err)
			return
		}
		writeMessage(w, res.created, item)
	default:
		res.api.writeMethodNotAllowed(w)
	}
}

func (res resource[T, R]) item(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, res.prefix), "/")
	id, err := service.ParseID(tail, res.entity)
	if err != nil {
		res.api.writeServiceError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := res.get(r.Context(), id)
		if err != nil {
			res.api.writeServiceError(w, err)
			return
		}
		writeData(w, item)
	case http.MethodPut:
		var req R
		if err := decodeJSON(r, &req); err != nil {
			res.api.writeServiceError(w, err)
			return
		}
		item, err := res.update(r.Context(), id, req)
		if err != nil {
			res.api.writeServiceError(w, err)
			return
		}
		writeMessage(w, res.updated, item)
	case http.MethodDelete:
		if err := res.remove(r.Context(), id); err != nil {
			res.api.writeServiceError(w, err)
			return
		}
		writeMessage(w, res.deleted, nil)
	default:
		res.api.writeMethodNotAllowed(w)
	}
}

func (a *API) productsResource() resource[domain.Product, domain.ProductRequest] {
	return resource[domain.Product, domain.ProductRequest]{
		api:     a,
		prefix:  "/api/products/",
		entity:  "Product",
		list:    a.service.ListProducts,
		get:     a.service.GetProduct,
		create:  a.service.CreateProduct,
		update:  a.service.UpdateProduct,
		remove:  a.service.DeleteProduct,
		created: "Product created successfully",
		updated: "Product updated successfully",
		deleted: "Product deleted successfully",
	}
}

func (a *API) categoriesResource() resource[domain.Category, domain.CategoryRequest] {
	return resource[domain.Category, domain.CategoryRequest]{
		api:     a,
		prefix:  "/api/categories/",
		entity:  "Category",
		list:    a.service.ListCategories,
		get:     a.service.GetCategory,
		create:  a.service.CreateCategory,
		update:  a.service.UpdateCategory,
		remove:  a.service.DeleteCategory,
		created: "Category created successfully",
		updated: "Category updated successfully",
		deleted: "Category deleted successfully",
	}
}

func (a *API) repairsResource() resource[domain.Repair, domain.RepairRequest] {
	return resource[domain.Repair, domain.RepairRequest]{
		api:     a,
		prefix:  "/api/repairs/",
		entity:  "Repair",
		list:    a.service.ListRepairs,
		get:     a.service.GetRepair,
		create:  a.service.CreateRepair,
		update:  a.service.UpdateRepair,
		remove:  a.service.DeleteRepair,
		created: "Service entry created successfully",
		updated: "Service entry updated successfully",
		deleted: "Service entry deleted successfully",
	}
}

func (a *API) othersResource() resource[domain.Other, domain.OtherRequest] {
	return resource[domain.Other, domain.OtherRequest]{
		api:     a,
		prefix:  "/api/others/",
		entity:  "Transaction",
		list:    a.service.ListOthers,
		get:     a.service.GetOther,
		create:  a.service.CreateOther,
		update:  a.service.UpdateOther,
		remove:  a.service.DeleteOther,
		created: "Transaction created successfully",
		updated: "Transaction updated successfully",
		deleted: "Transaction deleted successfully",
	}
}

func (a *API) otherCategoriesResource() resource[domain.OtherCategory, domain.CategoryRequest] {
	return resource[domain.OtherCategory, domain.CategoryRequest]{
		api:     a,
		prefix:  "/api/other-categories/",
		entity:  "Category",
		list:    a.service.ListOtherCategories,
		get:     a.service.GetOtherCategory,
		create:  a.service.CreateOtherCategory,
		update:  a.service.UpdateOtherCategory,
		remove:  a.service.DeleteOtherCategory,
		created: "Category created successfully",
		updated: "Category updated successfully",
		deleted: "Category deleted successfully",
	}
}

func (a *API) handleBills(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		bills, err := a.service.ListBills(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeData(w, bills)
	case http.MethodPost:
		var req domain.BillRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeServiceError(w, err)
			return
		}
		bill, err := a.service.CreateBill(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeMessage(w, "Bill created successfully", bill)
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleBillActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/billing/"), "/")
	printView := false
	if strings.HasSuffix(tail, "/print") {
		printView = true
		tail = strings.Trim(strings.TrimSuffix(tail, "/print"), "/")
	}
	id, err := service.ParseID(tail, "Bill")
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	if printView {
		if r.Method != http.MethodGet {
			a.writeMethodNotAllowed(w)
			return
		}
		html, err := a.service.PrintBill(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(html))
		return
	}

	switch r.Method {
	case http.MethodGet:
		bill, err := a.service.GetBill(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeData(w, bill)
	case http.MethodDelete:
		if err := a.service.DeleteBill(r.Context(), id); err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeMessage(w, "Bill deleted successfully", nil)
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleShopSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := a.service.GetShopSettings(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeData(w, settings)
	case http.MethodPost, http.MethodPut:
		var req domain.ShopSettingsRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeServiceError(w, err)
			return
		}
		settings, err := a.service.SaveShopSettings(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeMessage(w, "Shop settings updated successfully", settings)
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	stats, err := a.dashboard.Stats(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeData(w, stats)
}

func (a *API) handleChartData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	chart, err := a.dashboard.Chart(r.Context(), q.Get("viewType"), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeData(w, chart)
}

// handleDownloadExcel buffers the workbook so a failed export can still be
// reported as JSON.
func (a *API) handleDownloadExcel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	var buf bytes.Buffer
	if err := a.repo.Export(r.Context(), &buf); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.writeError(w, http.StatusNotFound, errors.New("Excel file not found"))
			return
		}
		a.writeServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("shop-data-%s.xlsx", a.now().In(a.loc).Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", filename, url.PathEscape(filename)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleResetAllData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	if err := a.repo.Reset(r.Context()); err != nil {
		a.writeServiceError(w, err)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	a.log.WithField("actor", actor.Username).Warn("all data reset")
	writeMessage(w, "All data has been reset successfully. Users data preserved for login.", nil)
}
