package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/walkup-orders/internal/identity"
	"github.com/dmehra2102/walkup-orders/internal/order/application"
	"github.com/dmehra2102/walkup-orders/internal/order/domain"
	"github.com/dmehra2102/walkup-orders/pkg/apperr"
	"github.com/dmehra2102/walkup-orders/pkg/idempotency"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	verifier identity.Verifier
	idem     idempotency.KeyStore
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewHandler accepts a nil idem, which turns off Idempotency-Key checks.
func NewHandler(log *slog.Logger, service *application.Service, verifier identity.Verifier, idem idempotency.KeyStore) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		verifier: verifier,
		idem:     idem,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer("order-http"),
	}
}

type lineReq struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int    `json:"quantity"`
}

type contactReq struct {
	Name  string `json:"name" validate:"max=120"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

type createOrderReq struct {
	Items         []lineReq  `json:"items" validate:"dive"`
	PaymentMethod string     `json:"paymentMethod" validate:"required"`
	Contact       contactReq `json:"contact"`
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

type claimReq struct {
	Accept  *bool      `json:"accept" validate:"required"`
	Contact contactReq `json:"contact"`
}

// Routes mounts the order API. ws, when non-nil, is served at /ws.
func (h *Handler) Routes(ws http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, h.authenticate)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if ws != nil {
		r.Handle("/ws", ws)
	}

	r.Route("/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireIdentity)
			if h.idem != nil {
				r.Use(idempotency.Middleware(h.log, h.idem, "orders"))
			}
			r.Post("/", h.createOrder)
		})
		r.With(requireStaff).Post("/manual", h.createManualOrder)
		r.Get("/{id}", h.getOrder)
		r.With(requireStaff).Patch("/{id}/status", h.advanceStatus)
		r.With(requireStaff).Post("/{id}/payment/confirm", h.confirmPayment)
		r.With(requireIdentity).Post("/{id}/claim", h.claimOrder)
	})
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, false)
}

func (h *Handler) createManualOrder(w http.ResponseWriter, r *http.Request) {
	h.place(w, r, true)
}

func (h *Handler) place(w http.ResponseWriter, r *http.Request, manual bool) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP CreateOrder", trace.WithAttributes(attribute.Bool("order.manual", manual)))
	defer span.End()

	var req createOrderReq
	if !h.decode(w, r, &req) {
		return
	}
	cmd := application.PlaceOrder{
		PaymentMethod: req.PaymentMethod,
		Contact:       req.Contact.domain(),
		Manual:        manual,
	}
	if !manual {
		owner := identity.FromContext(ctx).ID
		cmd.OwnerID = &owner
	}
	for _, l := range req.Items {
		cmd.Lines = append(cmd.Lines, application.LineRequest{ItemID: l.ItemID, Quantity: l.Quantity})
	}

	o, err := h.service.CreateOrder(ctx, cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(o, identity.FromContext(r.Context())))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o, identity.FromContext(r.Context())))
}

func (h *Handler) advanceStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if !h.decode(w, r, &req) {
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.service.AdvanceStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o, identity.FromContext(r.Context())))
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.ConfirmPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o, identity.FromContext(r.Context())))
}

func (h *Handler) claimOrder(w http.ResponseWriter, r *http.Request) {
	var req claimReq
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.service.ClaimOrder(r.Context(), application.ClaimRequest{
		OrderID:    chi.URLParam(r, "id"),
		ClaimantID: identity.FromContext(r.Context()).ID,
		Contact:    req.Contact.domain(),
		Accept:     *req.Accept,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(o, identity.FromContext(r.Context())))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", verrs[0].Namespace()+" failed "+verrs[0].Tag())
			return false
		}
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	code := apperr.CodeOf(err)
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	} else {
		h.log.Info("request rejected", "method", r.Method, "path", r.URL.Path, "code", code)
	}
	writeError(w, status, code, msg)
}

// StatusFor maps an error's class to an HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindStateConflict:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c contactReq) domain() domain.Contact {
	return domain.Contact{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

type itemResp struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type contactResp struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type orderResp struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"orderNumber"`
	OwnerID       *string         `json:"ownerId"`
	Items         []itemResp      `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentStatus string          `json:"paymentStatus"`
	IsManualOrder bool            `json:"isManualOrder"`
	ClaimStatus   string          `json:"claimStatus,omitempty"`
	Contact       *contactResp    `json:"contact,omitempty"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// toResponse renders o for viewer. The contact is only shown to staff and to
// the order's owner, since it is what a claim is checked against.
func toResponse(o domain.Order, viewer *identity.Identity) orderResp {
	items := make([]itemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResp{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal(),
		})
	}
	resp := orderResp{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		OwnerID:       o.OwnerID,
		Items:         items,
		TotalAmount:   o.TotalAmount,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		IsManualOrder: o.ManualOrder,
		ClaimStatus:   string(o.ClaimStatus),
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if canSeeContact(o, viewer) {
		c := contactResp(o.Contact)
		resp.Contact = &c
	}
	return resp
}

func canSeeContact(o domain.Order, viewer *identity.Identity) bool {
	if viewer == nil {
		return false
	}
	return viewer.IsStaff() || (o.OwnerID != nil && *o.OwnerID == viewer.ID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": msg}})
}
