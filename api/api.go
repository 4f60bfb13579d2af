// Package api is the HTTP surface for counter terminals and tablets.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hotel-billing/models"
	"hotel-billing/services"
	"hotel-billing/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// TenantLookup resolves tenant details for receipts.
type TenantLookup interface {
	Tenant(id string) (models.Tenant, bool)
}

type Deps struct {
	Auth     *services.Authenticator
	Menu     *services.MenuCatalog
	Tables   *services.TableOrders
	Ledger   *services.BillLedger
	Checkout *services.Checkout
	Tenants  TenantLookup
	Store    store.Store
	Logger   *zap.SugaredLogger
	// Location is used to read DD/MM/YYYY filter dates.
	Location  *time.Location
	JWTSecret string
	JWTTTL    time.Duration
}

type Server struct {
	deps   Deps
	tokens tokenIssuer
	logger *zap.SugaredLogger
}

func New(deps Deps) *Server {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	return &Server{
		deps:   deps,
		tokens: tokenIssuer{secret: []byte(deps.JWTSecret), ttl: deps.JWTTTL, now: time.Now},
		logger: deps.Logger,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.healthCheckHandler)
		r.Post("/login", s.loginHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/menu", s.getMenuHandler)
			r.Put("/menu/{code}", s.putMenuItemHandler)
			r.Delete("/menu/{code}", s.deleteMenuItemHandler)
			r.Post("/menu/reset", s.resetMenuHandler)

			r.Get("/tables", s.listTablesHandler)
			r.Get("/tables/{table}", s.getTableHandler)
			r.Delete("/tables/{table}", s.clearTableHandler)
			r.Post("/tables/{table}/items", s.addTableItemHandler)
			r.Patch("/tables/{table}/items/{index}", s.updateTableItemHandler)
			r.Delete("/tables/{table}/items/{index}", s.removeTableItemHandler)
			r.Patch("/tables/{table}/customer", s.updateCustomerHandler)
			r.Post("/tables/{table}/checkout", s.checkoutTableHandler)

			r.Post("/parcel", s.parcelHandler)

			r.Get("/bills", s.listBillsHandler)
			r.Get("/bills/stats", s.billStatsHandler)
			r.Get("/bills/{id}", s.getBillHandler)
			r.Get("/bills/{id}/receipt.pdf", s.billReceiptHandler)
			r.Patch("/bills/{id}/payment", s.updatePaymentHandler)
			r.Delete("/bills/{id}", s.deleteBillHandler)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Infow("server has started", "addr", addr)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdown; err != nil {
		return err
	}

	s.logger.Infow("server has stopped", "addr", addr)
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
