package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/bisonbooks/backend/internal/middleware"
	"github.com/bisonbooks/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var (
	errBusinessNotFound = errors.New("business not found")
	errClientNotFound   = errors.New("client not found")
)

// ResourceHandler creates and lists the documents that plan limits meter
type ResourceHandler struct {
	db *gorm.DB
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(db *gorm.DB) *ResourceHandler {
	return &ResourceHandler{
		db: db,
	}
}

// CreateBusinessRequest represents a request to create a business
type CreateBusinessRequest struct {
	Name     string          `json:"name" binding:"required"`
	Email    string          `json:"email"`
	Currency models.Currency `json:"currency"`
}

// CreateClientRequest represents a request to create a client
type CreateClientRequest struct {
	BusinessID uuid.UUID `json:"business_id"`
	Name       string    `json:"name" binding:"required"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
}

// CreateDocumentRequest represents a request to create an invoice, estimate or receipt
type CreateDocumentRequest struct {
	BusinessID uuid.UUID  `json:"business_id"`
	ClientID   *uuid.UUID `json:"client_id"`
	Number     string     `json:"number"`
	Amount     float64    `json:"amount" binding:"gte=0"`
	DueDate    *time.Time `json:"due_date"`
}

// CreateExpenseRequest represents a request to record an expense
type CreateExpenseRequest struct {
	BusinessID  uuid.UUID `json:"business_id"`
	Description string    `json:"description" binding:"required"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount" binding:"gte=0"`
}

// CreateBusiness creates a business for the caller
func (h *ResourceHandler) CreateBusiness(c *gin.Context) {
	var req CreateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = models.CurrencyNGN
	}

	business := models.Business{
		UserID:   middleware.CurrentUserID(c),
		Name:     req.Name,
		Slug:     slug.Make(req.Name),
		Email:    req.Email,
		Currency: currency,
	}
	h.create(c, &business)
}

// CreateClient creates a client under one of the caller's businesses
func (h *ResourceHandler) CreateClient(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.CurrentUserID(c)
	if !h.checkOwnership(c, userID, req.BusinessID, nil) {
		return
	}

	client := models.Client{
		UserID:     userID,
		BusinessID: req.BusinessID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
	}
	h.create(c, &client)
}

// CreateInvoice issues an invoice
func (h *ResourceHandler) CreateInvoice(c *gin.Context) {
	req, ok := h.bindDocument(c)
	if !ok {
		return
	}

	invoice := models.Invoice{
		UserID:     middleware.CurrentUserID(c),
		BusinessID: req.BusinessID,
		ClientID:   req.ClientID,
		Number:     req.Number,
		Amount:     req.Amount,
		DueDate:    req.DueDate,
	}
	h.create(c, &invoice)
}

// CreateEstimate issues an estimate
func (h *ResourceHandler) CreateEstimate(c *gin.Context) {
	req, ok := h.bindDocument(c)
	if !ok {
		return
	}

	estimate := models.Estimate{
		UserID:     middleware.CurrentUserID(c),
		BusinessID: req.BusinessID,
		ClientID:   req.ClientID,
		Number:     req.Number,
		Amount:     req.Amount,
	}
	h.create(c, &estimate)
}

// CreateReceipt issues a receipt
func (h *ResourceHandler) CreateReceipt(c *gin.Context) {
	req, ok := h.bindDocument(c)
	if !ok {
		return
	}

	receipt := models.Receipt{
		UserID:     middleware.CurrentUserID(c),
		BusinessID: req.BusinessID,
		ClientID:   req.ClientID,
		Number:     req.Number,
		Amount:     req.Amount,
	}
	h.create(c, &receipt)
}

// CreateExpense records an expense
func (h *ResourceHandler) CreateExpense(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.CurrentUserID(c)
	if !h.checkOwnership(c, userID, req.BusinessID, nil) {
		return
	}

	expense := models.Expense{
		UserID:      userID,
		BusinessID:  req.BusinessID,
		Description: req.Description,
		Category:    req.Category,
		Amount:      req.Amount,
	}
	h.create(c, &expense)
}

// ListBusinesses returns the caller's businesses
func (h *ResourceHandler) ListBusinesses(c *gin.Context) {
	listOwned[models.Business](c, h.db, "businesses", false)
}

// ListClients returns the caller's clients
func (h *ResourceHandler) ListClients(c *gin.Context) {
	listOwned[models.Client](c, h.db, "clients", true)
}

// ListInvoices returns the caller's invoices
func (h *ResourceHandler) ListInvoices(c *gin.Context) {
	listOwned[models.Invoice](c, h.db, "invoices", true)
}

// ListEstimates returns the caller's estimates
func (h *ResourceHandler) ListEstimates(c *gin.Context) {
	listOwned[models.Estimate](c, h.db, "estimates", true)
}

// ListReceipts returns the caller's receipts
func (h *ResourceHandler) ListReceipts(c *gin.Context) {
	listOwned[models.Receipt](c, h.db, "receipts", true)
}

// ListExpenses returns the caller's expenses
func (h *ResourceHandler) ListExpenses(c *gin.Context) {
	listOwned[models.Expense](c, h.db, "expenses", true)
}

func (h *ResourceHandler) bindDocument(c *gin.Context) (CreateDocumentRequest, bool) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}

	ok := h.checkOwnership(c, middleware.CurrentUserID(c), req.BusinessID, req.ClientID)
	return req, ok
}

// checkOwnership ensures the business, and the client when given, belong to
// the caller. It writes the error response itself.
func (h *ResourceHandler) checkOwnership(c *gin.Context, userID, businessID uuid.UUID, clientID *uuid.UUID) bool {
	if businessID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "business_id is required"})
		return false
	}

	ctx := c.Request.Context()
	var count int64
	if err := h.db.WithContext(ctx).Model(&models.Business{}).
		Where("id = ? AND user_id = ?", businessID, userID).
		Count(&count).Error; err != nil {
		respondError(c, err)
		return false
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": errBusinessNotFound.Error()})
		return false
	}

	if clientID == nil {
		return true
	}

	if err := h.db.WithContext(ctx).Model(&models.Client{}).
		Where("id = ? AND user_id = ? AND business_id = ?", *clientID, userID, businessID).
		Count(&count).Error; err != nil {
		respondError(c, err)
		return false
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": errClientNotFound.Error()})
		return false
	}
	return true
}

func (h *ResourceHandler) create(c *gin.Context, record interface{}) {
	if err := h.db.WithContext(c.Request.Context()).Create(record).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// listOwned writes the caller's rows of T, newest first, optionally filtered
// by the business_id query parameter
func listOwned[T any](c *gin.Context, db *gorm.DB, key string, byBusiness bool) {
	query := db.WithContext(c.Request.Context()).Where("user_id = ?", middleware.CurrentUserID(c))

	if byBusiness {
		if raw := c.Query("business_id"); raw != "" {
			businessID, err := uuid.Parse(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid business ID"})
				return
			}
			query = query.Where("business_id = ?", businessID)
		}
	}

	var rows []T
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{key: rows})
}
