package handler

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/logger"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/service"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/workflow"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 32 << 20
	requestTimeout   = 60 * time.Second
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	services *service.Services
	log      *logger.Logger
	validate *validator.Validate
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(services *service.Services, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		services: services,
		log:      log.Component("http"),
		validate: newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Routes builds the router. An empty allowedOrigins list allows any origin.
func (h *HTTPHandler) Routes(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(tracing)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderUserID},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(h.resolveActor)

		r.Route("/service-orders", func(r chi.Router) {
			r.Post("/", h.CreateServiceOrder)
			r.Get("/", h.ListServiceOrders)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetServiceOrder)
				r.Patch("/", h.UpdateServiceOrder)
				r.Post("/assign", h.AssignServiceOrder)
				r.Get("/transitions", h.AllowedTransitions)
				r.Post("/transitions", h.TransitionServiceOrder)
				r.Get("/audit", h.GetAuditTrail)
				r.Get("/quotes", h.ListQuotes)
				r.Post("/quotes", h.RegisterQuote)
				r.Post("/quotes/solicit", h.SolicitQuotes)
				r.Post("/documents/approval", h.GenerateApprovalDocument)
				r.Post("/documents/signed", h.UploadSignedDocument)
				r.Get("/attachments", h.ListAttachments)
				r.Get("/purchase-order", h.GetPurchaseOrder)
			})
		})

		r.Route("/quotes/{id}", func(r chi.Router) {
			r.Put("/", h.UpdateQuote)
			r.Post("/review", h.StartQuoteReview)
			r.Post("/decision", h.DecideQuote)
		})

		r.Get("/attachments/{id}/content", h.DownloadAttachment)
		r.Post("/purchase-orders/{id}/delivery", h.RecordDelivery)

		r.Get("/suppliers", h.ListSuppliers)
		r.Post("/suppliers", h.CreateSupplier)

		r.Get("/notifications", h.ListNotifications)
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)
	})

	return r
}

// Health reports liveness.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── Service orders ────────────────────────────────────────────────────────────

// CreateServiceOrder handles create service order HTTP requests
func (h *HTTPHandler) CreateServiceOrder(w http.ResponseWriter, r *http.Request) {
	var body createServiceOrderBody
	if !h.decode(w, r, &body) {
		return
	}
	order, err := h.services.Orders.Create(r.Context(), actorFrom(r.Context()), body.request())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, order)
}

// GetServiceOrder handles get service order HTTP requests
func (h *HTTPHandler) GetServiceOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.services.Orders.Get(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

// ListServiceOrders handles list service orders HTTP requests
func (h *HTTPHandler) ListServiceOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ServiceOrderFilter{
		AssignedToID: queryPtr(q.Get("assignedTo")),
		CreatedByID:  queryPtr(q.Get("createdBy")),
	}
	if s := q.Get("status"); s != "" {
		status := domain.Status(s)
		filter.Status = &status
	}

	var err error
	if filter.Page, err = queryInt(q.Get("page"), 1); err != nil {
		h.writeError(w, r, errors.InvalidInput("page", "must be a positive integer"))
		return
	}
	if filter.PageSize, err = queryInt(q.Get("pageSize"), 20); err != nil {
		h.writeError(w, r, errors.InvalidInput("pageSize", "must be a positive integer"))
		return
	}

	orders, total, err := h.services.Orders.List(r.Context(), actorFrom(r.Context()), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, listResponse[*domain.ServiceOrder]{
		Items: orders, Total: total, Page: filter.Page, PageSize: filter.PageSize,
	})
}

// UpdateServiceOrder handles partial field updates
func (h *HTTPHandler) UpdateServiceOrder(w http.ResponseWriter, r *http.Request) {
	var body workflow.FieldUpdate
	if !h.decode(w, r, &body) {
		return
	}
	order, err := h.services.Orders.Update(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

// AssignServiceOrder handles technician assignment
func (h *HTTPHandler) AssignServiceOrder(w http.ResponseWriter, r *http.Request) {
	var body assignBody
	if !h.decode(w, r, &body) {
		return
	}
	order, err := h.services.Orders.Assign(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), body.TechnicianID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

// TransitionServiceOrder handles status change requests
func (h *HTTPHandler) TransitionServiceOrder(w http.ResponseWriter, r *http.Request) {
	var body transitionBody
	if !h.decode(w, r, &body) {
		return
	}
	res, err := h.services.Orders.Transition(r.Context(), actorFrom(r.Context()), body.request(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// AllowedTransitions lists the statuses the caller may move the order to.
func (h *HTTPHandler) AllowedTransitions(w http.ResponseWriter, r *http.Request) {
	next, err := h.services.Orders.AllowedTransitions(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if next == nil {
		next = []domain.Status{}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"statuses": next})
}

// GetAuditTrail handles audit trail HTTP requests
func (h *HTTPHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.services.Orders.AuditTrail(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, listResponse[*domain.AuditEntry]{Items: entries, Total: len(entries)})
}

// ── Quotes ────────────────────────────────────────────────────────────────────

// ListQuotes handles list quotes HTTP requests
func (h *HTTPHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.services.Quotes.List(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, listResponse[*domain.Quote]{Items: quotes, Total: len(quotes)})
}

// SolicitQuotes handles quote solicitation requests
func (h *HTTPHandler) SolicitQuotes(w http.ResponseWriter, r *http.Request) {
	var body solicitBody
	if !h.decode(w, r, &body) {
		return
	}
	quotes, err := h.services.Quotes.Solicit(r.Context(), actorFrom(r.Context()), &service.SolicitQuotesRequest{
		OrderID:      chi.URLParam(r, "id"),
		SupplierIDs:  body.SupplierIDs,
		Items:        items(body.Items),
		Observations: body.Observations,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, listResponse[*domain.Quote]{Items: quotes, Total: len(quotes)})
}

// RegisterQuote records a supplier answer that arrived without a solicitation.
func (h *HTTPHandler) RegisterQuote(w http.ResponseWriter, r *http.Request) {
	var body registerQuoteBody
	if !h.decode(w, r, &body) {
		return
	}
	if body.SupplierID == "" {
		h.writeError(w, r, errors.InvalidInput("supplierId", "is required"))
		return
	}
	quote, err := h.services.Quotes.Register(r.Context(), actorFrom(r.Context()), body.request(chi.URLParam(r, "id"), ""))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, quote)
}

// UpdateQuote prices a solicited quote.
func (h *HTTPHandler) UpdateQuote(w http.ResponseWriter, r *http.Request) {
	var body registerQuoteBody
	if !h.decode(w, r, &body) {
		return
	}
	quote, err := h.services.Quotes.Register(r.Context(), actorFrom(r.Context()), body.request("", chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, quote)
}

// StartQuoteReview handles quote review requests
func (h *HTTPHandler) StartQuoteReview(w http.ResponseWriter, r *http.Request) {
	quote, err := h.services.Quotes.StartReview(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, quote)
}

// DecideQuote handles approve and reject decisions
func (h *HTTPHandler) DecideQuote(w http.ResponseWriter, r *http.Request) {
	var body decisionBody
	if !h.decode(w, r, &body) {
		return
	}
	res, err := h.services.Quotes.Decide(r.Context(), actorFrom(r.Context()), &service.DecideQuoteRequest{
		QuoteID:         chi.URLParam(r, "id"),
		Action:          body.Action,
		Reason:          body.Reason,
		Observations:    body.Observations,
		DeliveryAddress: body.DeliveryAddress,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// GetPurchaseOrder handles get purchase order HTTP requests
func (h *HTTPHandler) GetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	po, err := h.services.Quotes.GetPurchaseOrder(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, po)
}

// RecordDelivery marks a signed purchase order as delivered.
func (h *HTTPHandler) RecordDelivery(w http.ResponseWriter, r *http.Request) {
	po, err := h.services.Quotes.RecordDelivery(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, po)
}

// ── Documents ─────────────────────────────────────────────────────────────────

// GenerateApprovalDocument handles approval document requests
func (h *HTTPHandler) GenerateApprovalDocument(w http.ResponseWriter, r *http.Request) {
	att, err := h.services.Documents.GenerateApprovalDocument(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, att)
}

// UploadSignedDocument accepts the signed approval as multipart field "file".
func (h *HTTPHandler) UploadSignedDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
		h.writeError(w, r, errors.InvalidInput("file", "invalid multipart body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, errors.InvalidInput("file", "is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, errors.InvalidInput("file", "could not be read"))
		return
	}

	res, err := h.services.Documents.UploadSignedDocument(r.Context(), actorFrom(r.Context()), &service.UploadSignedDocumentRequest{
		OrderID:     chi.URLParam(r, "id"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// ListAttachments handles list attachments HTTP requests
func (h *HTTPHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	atts, err := h.services.Documents.ListAttachments(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, listResponse[*domain.Attachment]{Items: atts, Total: len(atts)})
}

// DownloadAttachment streams the stored bytes of an attachment.
func (h *HTTPHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	content, err := h.services.Documents.DownloadAttachment(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", content.Attachment.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.Attachment.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content.Data); err != nil {
		h.log.Warn().Err(err).Str("attachment_id", content.Attachment.ID).Msg("attachment download interrupted")
	}
}

// ── Directory ─────────────────────────────────────────────────────────────────

// ListSuppliers handles list suppliers HTTP requests
func (h *HTTPHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	suppliers, err := h.services.Directory.ListSuppliers(r.Context(), actorFrom(r.Context()), activeOnly)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, listResponse[*domain.Supplier]{Items: suppliers, Total: len(suppliers)})
}

// CreateSupplier handles create supplier HTTP requests
func (h *HTTPHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var body createSupplierBody
	if !h.decode(w, r, &body) {
		return
	}
	sp, err := h.services.Directory.CreateSupplier(r.Context(), actorFrom(r.Context()), &service.CreateSupplierRequest{
		Name: body.Name, CNPJ: body.CNPJ, Email: body.Email, Phone: body.Phone,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, sp)
}

// ListNotifications handles list notifications HTTP requests
func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), 50)
	if err != nil {
		h.writeError(w, r, errors.InvalidInput("limit", "must be a positive integer"))
		return
	}
	ns, err := h.services.Directory.ListNotifications(r.Context(), actorFrom(r.Context()), q.Get("unread") == "true", limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, listResponse[*domain.Notification]{Items: ns, Total: len(ns)})
}

// MarkNotificationRead handles mark notification read requests
func (h *HTTPHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Directory.MarkNotificationRead(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// decode reads a JSON body into dst and validates it. On failure the error
// response has already been written.
func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, errors.Wrap(err, errors.ErrCodeValidation, "invalid request body"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, r, validationError(err))
		return false
	}
	return true
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid request body")
	}
	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	msg := "failed " + fe.Tag()
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "email":
		msg = "must be a valid e-mail address"
	case "oneof":
		msg = "must be one of: " + fe.Param()
	case "min":
		msg = "must have at least " + fe.Param() + " entries"
	case "gt", "gte":
		msg = "must be greater than " + fe.Param()
	}
	return errors.InvalidInput(field, msg)
}

func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case errors.ErrCodeUnauthorizedRole:
		return http.StatusForbidden
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeIllegalTransition, errors.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.CodeOf(err)
	detail := errorDetail{Code: string(code)}

	var e *errors.Error
	if code != errors.ErrCodeInternal && errors.As(err, &e) {
		detail.Message = e.Message
		detail.Field = e.Field
	} else {
		detail.Code = string(errors.ErrCodeInternal)
		detail.Message = "internal error"
		h.log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	h.respondJSON(w, httpStatus(code), errorBody{Error: detail})
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("failed to encode response")
	}
}

func queryPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.InvalidInput("", "must be a positive integer")
	}
	return n, nil
}
