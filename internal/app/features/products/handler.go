// Package products serves the product catalogue. Everyone signed in can
// read; creating, editing and deleting need the matching capability.
package products

import (
	"context"
	"errors"
	"net/http"
	"unicode/utf8"

	uierrors "github.com/dalemusser/producthub/internal/app/features/errors"
	"github.com/dalemusser/producthub/internal/app/store/audit"
	productstore "github.com/dalemusser/producthub/internal/app/store/products"
	"github.com/dalemusser/producthub/internal/app/system/auditlog"
	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/producthub/internal/app/system/inputval"
	"github.com/dalemusser/producthub/internal/app/system/timeouts"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Products *productstore.Store
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
	Audit    *auditlog.Logger
}

func NewHandler(products *productstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Products: products,
		ErrLog:   errLog,
		Log:      logger,
	}
}

type productInput struct {
	Name        string            `json:"name" validate:"required,max=200" label:"Name"`
	Description string            `json:"description" validate:"max=10000" label:"Description"`
	SKU         string            `json:"sku" validate:"max=64" label:"SKU"`
	Category    string            `json:"category" validate:"max=100" label:"Category"`
	Brand       string            `json:"brand" validate:"max=100" label:"Brand"`
	Price       float64           `json:"price" validate:"gte=0" label:"Price"`
	Stock       int               `json:"stock" validate:"gte=0" label:"Stock"`
	Status      string            `json:"status" validate:"omitempty,productstatus" label:"Status"`
	Tags        []string          `json:"tags" validate:"max=20,dive,max=50" label:"Tags"`
	Images      []string          `json:"images" validate:"max=20,dive,httpurl" label:"Images"`
	Specs       map[string]string `json:"specs" validate:"max=50" label:"Specs"`
}

// fields sanitizes the input. Description keeps formatting markup; every
// other text field is reduced to plain text.
func (in productInput) fields() productstore.Fields {
	var specs map[string]string
	if len(in.Specs) > 0 {
		specs = make(map[string]string, len(in.Specs))
		for k, v := range in.Specs {
			if k = htmlsanitize.StripTags(k); k != "" {
				specs[k] = htmlsanitize.StripTags(v)
			}
		}
	}
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		tags = append(tags, htmlsanitize.StripTags(t))
	}
	return productstore.Fields{
		Name:        htmlsanitize.StripTags(in.Name),
		Description: htmlsanitize.Sanitize(in.Description),
		SKU:         htmlsanitize.StripTags(in.SKU),
		Category:    htmlsanitize.StripTags(in.Category),
		Brand:       htmlsanitize.StripTags(in.Brand),
		Price:       in.Price,
		Stock:       in.Stock,
		Status:      models.ProductStatus(in.Status),
		Tags:        tags,
		Images:      in.Images,
		Specs:       specs,
	}
}

type productResponse struct {
	Product models.Product `json:"product"`
}

type listResponse struct {
	Products []models.Product `json:"products"`
}

// maxSearchLen bounds ?q= so a query cannot grow into a costly regex.
const maxSearchLen = 100

// ServeList handles GET /products, newest first. ?status= filters by stage
// and ?q= searches name, category and brand.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	status := models.ProductStatus(query.Get(r, "status"))
	if status != "" && !models.IsValidProductStatus(status) {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, productstore.ErrInvalidStatus.Error())
		return
	}
	q := query.Get(r, "q")
	if utf8.RuneCountInString(q) > maxSearchLen {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, "Search must be at most 100 characters.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Products.List(ctx, productstore.ListFilter{Status: status, Search: q})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list products", err, "A database error occurred.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, listResponse{Products: list})
}

// ServeGet handles GET /products/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Products.Get(ctx, id)
	if err != nil {
		h.storeError(w, r, "get product", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, productResponse{Product: p})
}

// HandleCreate handles POST /products.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.require(w, r, authz.CapCreateProduct)
	if !ok {
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Products.Create(ctx, in.fields(), actor.ID)
	if err != nil {
		h.storeError(w, r, "create product", err)
		return
	}
	h.Log.Info("product created",
		zap.String("product_id", p.ID.Hex()),
		zap.String("user_id", actor.ID.Hex()))
	h.Audit.ProductChanged(ctx, r, audit.EventProductCreated, actor.ID, p.ID, p.Name)
	uierrors.WriteJSON(w, http.StatusCreated, productResponse{Product: p})
}

// HandleUpdate handles PUT /products/{id}. Every update bumps version.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.require(w, r, authz.CapEditProduct)
	if !ok {
		return
	}
	id, ok := productID(w, r)
	if !ok {
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Products.Update(ctx, id, in.fields())
	if err != nil {
		h.storeError(w, r, "update product", err)
		return
	}
	h.Log.Info("product updated",
		zap.String("product_id", p.ID.Hex()),
		zap.Int("version", p.Version),
		zap.String("user_id", actor.ID.Hex()))
	h.Audit.ProductChanged(ctx, r, audit.EventProductUpdated, actor.ID, p.ID, p.Name)
	uierrors.WriteJSON(w, http.StatusOK, productResponse{Product: p})
}

// HandleDelete handles DELETE /products/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.require(w, r, authz.CapDeleteProduct)
	if !ok {
		return
	}
	id, ok := productID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Products.Delete(ctx, id); err != nil {
		h.storeError(w, r, "delete product", err)
		return
	}
	h.Log.Info("product deleted",
		zap.String("product_id", id.Hex()),
		zap.String("user_id", actor.ID.Hex()))
	h.Audit.ProductChanged(ctx, r, audit.EventProductDeleted, actor.ID, id, "")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) require(w http.ResponseWriter, r *http.Request, c authz.Capability) (authz.Actor, bool) {
	actor, ok := authz.UserCtx(r)
	if !ok {
		uierrors.JSON(w, http.StatusUnauthorized, uierrors.CodeUnauthorized, "Sign in required.")
		return authz.Actor{}, false
	}
	if !authz.Can(actor.Role, c) {
		h.ErrLog.LogForbidden(w, r, "products: missing "+string(c), "Only admins can manage products.")
		return authz.Actor{}, false
	}
	return actor, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (productInput, bool) {
	var in productInput
	if err := inputval.DecodeJSON(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode product", err, "Invalid request body.")
		return in, false
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, res.First())
		return in, false
	}
	return in, true
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, productstore.ErrNotFound):
		uierrors.JSON(w, http.StatusNotFound, uierrors.CodeNotFound, "Product not found.")
	case errors.Is(err, productstore.ErrNameRequired),
		errors.Is(err, productstore.ErrInvalidStatus),
		errors.Is(err, productstore.ErrNegative):
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeInvalid, err.Error())
	default:
		h.ErrLog.LogServerError(w, r, msg, err, "A database error occurred.")
	}
}

func productID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.JSON(w, http.StatusBadRequest, uierrors.CodeBadRequest, "Invalid product id.")
		return primitive.NilObjectID, false
	}
	return id, true
}
