package register

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/register-core/internal/common"
	"github.com/noah-isme/register-core/internal/discount"
	"github.com/noah-isme/register-core/internal/engine"
	"github.com/noah-isme/register-core/internal/money"
	"github.com/noah-isme/register-core/internal/pricing"
	"github.com/noah-isme/register-core/internal/tax"
	"github.com/noah-isme/register-core/internal/tender"
)

// Handler wires the register service to HTTP. Monetary amounts cross the
// wire as integer cents; quantities and weights as integer thousandths.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Currency string
}

// NewHandler constructs a Handler with a ready validator.
func NewHandler(svc *Service, currency string) *Handler {
	return &Handler{
		Svc:      svc,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Currency: currency,
	}
}

// Routes mounts the transaction endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/transactions", h.Open)
	r.Route("/transactions/{id}", func(t chi.Router) {
		t.Get("/", h.Get)
		t.Post("/lines", h.AddLine)
		t.Put("/lines/{lineId}", h.UpdateLine)
		t.Delete("/lines/{lineId}", h.RemoveLine)
		t.Put("/discount", h.SetDiscount)
		t.Delete("/discount", h.ClearDiscount)
		t.Post("/tenders", h.ApplyTender)
		t.Post("/void", h.Void)
		t.Post("/returns", h.Return)
	})
}

type taxRateRequest struct {
	Authority string `json:"authority" validate:"required"`
	RateBps   int64  `json:"rateBps" validate:"gte=0,lte=10000"`
}

type lineDiscountRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=percent per_unit amount"`
	PercentBps  int64  `json:"percentBps" validate:"gte=0,lte=10000"`
	AmountCents int64  `json:"amountCents" validate:"gte=0"`
}

type lineRequest struct {
	SKU                   string               `json:"sku"`
	Description           string               `json:"description"`
	UnitPriceCents        int64                `json:"unitPriceCents" validate:"gte=0"`
	SalePriceCents        int64                `json:"salePriceCents" validate:"gte=0"`
	QtyMilli              int64                `json:"qtyMilli" validate:"gt=0"`
	SoldByWeight          bool                 `json:"soldByWeight"`
	ContainerDepositCents int64                `json:"containerDepositCents" validate:"gte=0"`
	TaxRates              []taxRateRequest     `json:"taxRates" validate:"dive"`
	SnapEligible          bool                 `json:"snapEligible"`
	FloorPriceCents       int64                `json:"floorPriceCents" validate:"gte=0"`
	FloorOverride         bool                 `json:"floorOverride"`
	Discount              *lineDiscountRequest `json:"discount"`
}

type invoiceDiscountRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=percent amount"`
	PercentBps  int64  `json:"percentBps" validate:"gte=0,lte=10000"`
	AmountCents int64  `json:"amountCents" validate:"gte=0"`
}

type tenderRequest struct {
	Method      string `json:"method" validate:"required"`
	AmountCents int64  `json:"amountCents" validate:"gt=0"`
}

type returnRequest struct {
	Lines []returnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type returnLineRequest struct {
	LineID   string `json:"lineId" validate:"required,uuid"`
	QtyMilli int64  `json:"qtyMilli" validate:"gt=0"`
}

// Open starts a new transaction.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Svc.Open(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.render(tx)})
}

// Get returns the transaction with its current totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	tx, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(tx)})
}

// AddLine appends a line to the cart.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var payload lineRequest
	if !h.decode(w, r, &payload) {
		return
	}
	tx, err := h.Svc.AddLine(r.Context(), id, lineFromRequest(payload, uuid.Nil))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(tx)})
}

// UpdateLine replaces an existing line.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := h.pathID(w, r, "lineId")
	if !ok {
		return
	}
	var payload lineRequest
	if !h.decode(w, r, &payload) {
		return
	}
	tx, err := h.Svc.UpdateLine(r.Context(), id, lineFromRequest(payload, lineID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(tx)})
}

// RemoveLine deletes a line from the cart.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := h.pathID(w, r, "lineId")
	if !ok {
		return
	}
	tx, err := h.Svc.RemoveLine(r.Context(), id, lineID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(tx)})
}

// SetDiscount attaches the invoice-level discount.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var payload invoiceDiscountRequest
	if !h.decode(w, r, &payload) {
		return
	}
	inv := discount.Invoice{
		Kind:       discount.Kind(payload.Kind),
		PercentBps: payload.PercentBps,
		Amount:     money.Cents(payload.AmountCents),
	}
	tx, err := h.Svc.SetDiscount(r.Context(), id, inv)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(tx)})
}

// ClearDiscount removes the invoice-level discount.
func (h *Handler) ClearDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	tx, err := h.Svc.ClearDiscount(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(tx)})
}

// ApplyTender records an approved payment.
func (h *Handler) ApplyTender(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var payload tenderRequest
	if !h.decode(w, r, &payload) {
		return
	}
	method := tender.Method(strings.ToLower(strings.TrimSpace(payload.Method)))
	tx, err := h.Svc.ApplyTender(r.Context(), id, method, money.Cents(payload.AmountCents))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(tx)})
}

// Void cancels an open transaction.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	tx, err := h.Svc.Void(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(tx)})
}

// Return processes a return against a completed transaction.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var payload returnRequest
	if !h.decode(w, r, &payload) {
		return
	}
	lines := make([]engine.ReturnLine, 0, len(payload.Lines))
	for _, ln := range payload.Lines {
		lineID, err := uuid.Parse(ln.LineID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line id", nil)
			return
		}
		lines = append(lines, engine.ReturnLine{LineID: lineID, Qty: money.Units(ln.QtyMilli)})
	}
	tx, refund, err := h.Svc.Return(r.Context(), id, lines)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"transaction": h.render(tx),
		"refund": map[string]any{
			"id":     refund.ID.String(),
			"totals": renderTotals(refund.Totals),
		},
	}})
}

func lineFromRequest(payload lineRequest, id uuid.UUID) pricing.LineItem {
	item := pricing.LineItem{
		ID:               id,
		SKU:              strings.TrimSpace(payload.SKU),
		Description:      strings.TrimSpace(payload.Description),
		UnitPrice:        money.Cents(payload.UnitPriceCents),
		SalePrice:        money.Cents(payload.SalePriceCents),
		Qty:              money.Units(payload.QtyMilli),
		SoldByWeight:     payload.SoldByWeight,
		ContainerDeposit: money.Cents(payload.ContainerDepositCents),
		SnapEligible:     payload.SnapEligible,
		FloorPrice:       money.Cents(payload.FloorPriceCents),
		FloorOverride:    payload.FloorOverride,
	}
	for _, rate := range payload.TaxRates {
		item.TaxRates = append(item.TaxRates, pricing.TaxRate{
			Authority: strings.TrimSpace(rate.Authority),
			RateBps:   rate.RateBps,
		})
	}
	if payload.Discount != nil {
		item.Discount = &pricing.LineDiscount{
			Kind:       pricing.DiscountKind(payload.Discount.Kind),
			PercentBps: payload.Discount.PercentBps,
			Amount:     money.Cents(payload.Discount.AmountCents),
		}
	}
	return item
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if err := h.Validate.Struct(v); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "validation failed", validationDetails(err))
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

func (h *Handler) render(tx Transaction) map[string]any {
	refunds := make([]map[string]any, 0, len(tx.Refunds))
	for _, rf := range tx.Refunds {
		refunds = append(refunds, map[string]any{
			"id":     rf.ID.String(),
			"at":     rf.At,
			"totals": renderTotals(rf.Totals),
		})
	}
	return map[string]any{
		"id":        tx.ID.String(),
		"status":    string(tx.Status),
		"currency":  h.Currency,
		"createdAt": tx.CreatedAt,
		"updatedAt": tx.UpdatedAt,
		"totals":    renderTotals(tx.Totals),
		"refunds":   refunds,
	}
}

func renderTotals(t engine.Totals) map[string]any {
	lines := make([]map[string]any, 0, len(t.Lines))
	for _, ln := range t.Lines {
		lines = append(lines, map[string]any{
			"lineId":                  ln.LineID.String(),
			"sku":                     ln.SKU,
			"description":             ln.Description,
			"qtyMilli":                ln.Qty.Units(),
			"effectiveUnitPriceCents": ln.EffectiveUnitPrice.Cents(),
			"grossCents":              ln.Gross.Cents(),
			"lineDiscountCents":       ln.LineDiscount.Cents(),
			"requestedDiscountCents":  ln.RequestedDiscount.Cents(),
			"discountClamped":         ln.DiscountClamped,
			"invoiceShareCents":       ln.InvoiceShare.Cents(),
			"subtotalCents":           ln.Subtotal.Cents(),
			"containerValueCents":     ln.ContainerValue.Cents(),
			"taxCents":                ln.Tax.Cents(),
			"taxByAuthority":          renderAuthorities(ln.TaxByAuthority),
			"snapEligible":            ln.SnapEligible,
			"snapPaidCents":           ln.SnapPaid.Cents(),
			"savingsCents":            ln.Savings.Cents(),
		})
	}
	steps := make([]map[string]any, 0, len(t.Payments.Steps))
	for _, step := range t.Payments.Steps {
		steps = append(steps, map[string]any{
			"method":              string(step.Tender.Method),
			"seq":                 step.Tender.Seq,
			"amountCents":         step.Tender.Amount.Cents(),
			"appliedCents":        step.Applied.Cents(),
			"remainingAfterCents": step.RemainingAfter.Cents(),
		})
	}
	return map[string]any{
		"lines":                  lines,
		"subtotalCents":          t.Subtotal.Cents(),
		"containerTotalCents":    t.ContainerTotal.Cents(),
		"taxTotalCents":          t.TaxTotal.Cents(),
		"taxByAuthority":         renderAuthorities(t.TaxByAuthority),
		"grandTotalCents":        t.GrandTotal.Cents(),
		"savingsCents":           t.Savings.Cents(),
		"invoiceDiscountCents":   t.InvoiceDiscount.Cents(),
		"snapEligibleTotalCents": t.SnapEligibleTotal.Cents(),
		"snapPaidTotalCents":     t.SnapPaidTotal.Cents(),
		"nonSnapTotalCents":      t.NonSnapTotal.Cents(),
		"payments": map[string]any{
			"steps":          steps,
			"changeDueCents": t.Payments.ChangeDue.Cents(),
			"remainingCents": t.Payments.Remaining.Cents(),
			"completed":      t.Payments.Completed,
		},
	}
}

func renderAuthorities(in []tax.AuthorityTax) []map[string]any {
	out := make([]map[string]any, 0, len(in))
	for _, at := range in {
		out = append(out, map[string]any{
			"authority":   at.Authority,
			"amountCents": at.Amount.Cents(),
		})
	}
	return out
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrNotOpen), errors.Is(err, ErrNotReturnable):
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrLineNotFound), errors.Is(err, engine.ErrUnknownReturnLine):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, tender.ErrOverTender),
		errors.Is(err, tender.ErrSnapExceedsEligible),
		errors.Is(err, ErrReturnExceedsRemaining),
		errors.Is(err, engine.ErrReturnExceedsOriginal):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, tender.ErrInvalidAmount),
		errors.Is(err, tender.ErrUnknownMethod),
		errors.Is(err, engine.ErrInvalidReturnQty):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
