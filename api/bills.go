package api

import (
	"net/http"

	"hotel-billing/receipt"
	"hotel-billing/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// listBillsHandler accepts ?search= and ?from= / ?to= as DD/MM/YYYY.
func (s *Server) listBillsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.BillFilter{Search: q.Get("search")}
	if v := q.Get("from"); v != "" {
		from, err := services.ParseBillDate(v, s.deps.Location)
		if err != nil {
			s.badRequestResponse(w, r, badParam("from", err))
			return
		}
		filter.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := services.ParseBillDate(v, s.deps.Location)
		if err != nil {
			s.badRequestResponse(w, r, badParam("to", err))
			return
		}
		filter.To = to
	}

	bills, err := s.deps.Ledger.Filter(r.Context(), filter)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"bills": bills})
}

func (s *Server) billStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Ledger.Statistics(r.Context())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) getBillHandler(w http.ResponseWriter, r *http.Request) {
	bill, found, err := s.deps.Ledger.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !found {
		s.notFoundResponse(w, r, "bill")
		return
	}
	s.jsonResponse(w, http.StatusOK, bill)
}

func (s *Server) billReceiptHandler(w http.ResponseWriter, r *http.Request) {
	bill, found, err := s.deps.Ledger.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !found {
		s.notFoundResponse(w, r, "bill")
		return
	}
	sess, _ := services.SessionFrom(r.Context())
	tenant, ok := s.deps.Tenants.Tenant(sess.TenantID)
	if !ok {
		s.notFoundResponse(w, r, "tenant")
		return
	}

	data, err := receipt.PDF(tenant, bill)
	if err != nil {
		s.internalServerError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+receipt.FileName(bill)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Errorw("failed to write receipt", "bill_id", bill.ID, "error", err)
	}
}

type paymentRequest struct {
	Jama *decimal.Decimal `json:"jama"`
}

func (s *Server) updatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	bill, found, err := s.deps.Ledger.UpdatePayment(r.Context(), chi.URLParam(r, "id"), services.PaymentPatch{Jama: req.Jama})
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !found {
		s.notFoundResponse(w, r, "bill")
		return
	}
	s.jsonResponse(w, http.StatusOK, bill)
}

func (s *Server) deleteBillHandler(w http.ResponseWriter, r *http.Request) {
	found, err := s.deps.Ledger.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !found {
		s.notFoundResponse(w, r, "bill")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
