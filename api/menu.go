package api

import (
	"net/http"

	"hotel-billing/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type menuItemResponse struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Rate     decimal.Decimal `json:"rate"`
	Category string          `json:"category"`
}

type menuResponse struct {
	Items      []menuItemResponse `json:"items"`
	Categories []string           `json:"categories"`
}

func (s *Server) getMenuHandler(w http.ResponseWriter, r *http.Request) {
	menu, err := s.deps.Menu.GetMenu(r.Context())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	categories, err := s.deps.Menu.Categories(r.Context())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	resp := menuResponse{Items: make([]menuItemResponse, 0, len(menu)), Categories: categories}
	for _, code := range menu.Codes() {
		item := menu[code]
		resp.Items = append(resp.Items, menuItemResponse{Code: code, Name: item.Name, Rate: item.Rate, Category: item.Category})
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

type menuItemRequest struct {
	Name     string          `json:"name"`
	Rate     decimal.Decimal `json:"rate"`
	Category string          `json:"category"`
}

func (s *Server) putMenuItemHandler(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	code := chi.URLParam(r, "code")
	item := models.MenuItem{Name: req.Name, Rate: req.Rate, Category: req.Category}
	if err := s.deps.Menu.AddItem(r.Context(), code, item); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, menuItemResponse{Code: code, Name: item.Name, Rate: item.Rate, Category: item.Category})
}

func (s *Server) deleteMenuItemHandler(w http.ResponseWriter, r *http.Request) {
	ok, err := s.deps.Menu.DeleteItem(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !ok {
		s.notFoundResponse(w, r, "menu item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resetMenuHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Menu.ResetToDefault(r.Context()); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

