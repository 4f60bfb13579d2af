package api

import (
	"net/http"
	"strconv"

	"hotel-billing/models"
	"hotel-billing/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type tableResponse struct {
	Order   models.TableOrder   `json:"order"`
	Summary models.OrderSummary `json:"summary"`
}

type tableListEntry struct {
	TableID string              `json:"tableId"`
	Summary models.OrderSummary `json:"summary"`
}

func (s *Server) listTablesHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.deps.Tables.ListActiveTables(r.Context())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	resp := make([]tableListEntry, 0, len(ids))
	for _, id := range ids {
		sum, err := s.deps.Tables.Summary(r.Context(), id)
		if err != nil {
			s.errorResponse(w, r, err)
			return
		}
		resp = append(resp, tableListEntry{TableID: id, Summary: sum})
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"tables": resp})
}

func (s *Server) writeTable(w http.ResponseWriter, status int, order models.TableOrder) {
	s.jsonResponse(w, status, tableResponse{Order: order, Summary: services.Summarize(order)})
}

func (s *Server) getTableHandler(w http.ResponseWriter, r *http.Request) {
	order, ok, err := s.deps.Tables.Get(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !ok {
		s.notFoundResponse(w, r, "table order")
		return
	}
	s.writeTable(w, http.StatusOK, order)
}

func (s *Server) clearTableHandler(w http.ResponseWriter, r *http.Request) {
	ok, err := s.deps.Tables.Clear(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !ok {
		s.notFoundResponse(w, r, "table order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addItemRequest struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

func (s *Server) addTableItemHandler(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	order, err := s.deps.Tables.AddMenuItem(r.Context(), chi.URLParam(r, "table"), req.Code, req.Quantity)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.writeTable(w, http.StatusCreated, order)
}

func itemIndex(r *http.Request) (int, error) {
	// 1-based in URLs, as shown on the table card
	n, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, badParam("index", err)
	}
	return n - 1, nil
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) updateTableItemHandler(w http.ResponseWriter, r *http.Request) {
	index, err := itemIndex(r)
	if err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	var req updateQuantityRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	table := chi.URLParam(r, "table")
	ok, err := s.deps.Tables.UpdateQuantity(r.Context(), table, index, req.Quantity)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !ok {
		s.notFoundResponse(w, r, "order line")
		return
	}
	order, _, err := s.deps.Tables.Get(r.Context(), table)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.writeTable(w, http.StatusOK, order)
}

func (s *Server) removeTableItemHandler(w http.ResponseWriter, r *http.Request) {
	index, err := itemIndex(r)
	if err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	ok, err := s.deps.Tables.RemoveItem(r.Context(), chi.URLParam(r, "table"), index)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !ok {
		s.notFoundResponse(w, r, "order line")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.CustomerPatch
	if err := readJSON(w, r, &patch); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	table := chi.URLParam(r, "table")
	ok, err := s.deps.Tables.UpdateCustomerInfo(r.Context(), table, patch)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !ok {
		s.notFoundResponse(w, r, "table order")
		return
	}
	order, _, err := s.deps.Tables.Get(r.Context(), table)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.writeTable(w, http.StatusOK, order)
}

type checkoutRequest struct {
	IncludeGST *bool            `json:"includeGST"`
	Jama       *decimal.Decimal `json:"jama"`
}

func (req checkoutRequest) options() services.CheckoutOptions {
	return services.CheckoutOptions{IncludeGST: req.IncludeGST, Jama: req.Jama}
}

// readOptionalJSON accepts an empty body.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, data any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return readJSON(w, r, data)
}

func (s *Server) checkoutTableHandler(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := readOptionalJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	bill, found, err := s.deps.Checkout.CheckoutTable(r.Context(), chi.URLParam(r, "table"), req.options())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !found {
		s.notFoundResponse(w, r, "table order")
		return
	}
	s.jsonResponse(w, http.StatusCreated, bill)
}

type parcelRequest struct {
	checkoutRequest
	Items    []services.ParcelLine `json:"items"`
	Customer models.CustomerInfo   `json:"customer"`
}

func (s *Server) parcelHandler(w http.ResponseWriter, r *http.Request) {
	var req parcelRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	bill, err := s.deps.Checkout.CheckoutParcel(r.Context(), req.Items, req.Customer, req.options())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, bill)
}
