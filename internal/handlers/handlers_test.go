package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bisonbooks/backend/internal/billing"
	"github.com/bisonbooks/backend/internal/database/migrations"
	"github.com/bisonbooks/backend/internal/middleware"
	"github.com/bisonbooks/backend/internal/models"
	"github.com/bisonbooks/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testJWTSecret  = "handler-test-secret"
	testCronSecret = "cron-test-secret"
	testWebhookKey = "sk_test_webhook"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockGateway is a mock implementation of billing.PaymentGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePaymentLink(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckoutSession), args.Error(1)
}

func (m *MockGateway) VerifyPayment(ctx context.Context, reference string) (*models.PaymentVerification, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentVerification), args.Error(1)
}

// stubWebhookParser accepts signatures equal to the HMAC of the body
type stubWebhookParser struct{}

func (stubWebhookParser) VerifyWebhookSignature(body []byte, signature string) bool {
	return utils.VerifyHMACSHA512Hex(body, signature, testWebhookKey)
}

func (stubWebhookParser) ParseWebhook(body []byte) (string, *models.PaymentVerification, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			Reference string                  `json:"reference"`
			Status    string                  `json:"status"`
			Metadata  models.CheckoutMetadata `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, err
	}
	return payload.Event, &models.PaymentVerification{
		Reference: payload.Data.Reference,
		Status:    models.PaymentStatus(payload.Data.Status),
		Metadata:  payload.Data.Metadata,
	}, nil
}

type testServer struct {
	db      *gorm.DB
	gateway *MockGateway
	billing *billing.Service
	router  *gin.Engine
	now     time.Time
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, migrations.RunMigrations(db))
	return db
}

// newTestServer wires the handlers the same way the route table does
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{
		db:      setupTestDB(t),
		gateway: new(MockGateway),
		now:     time.Now().UTC().Truncate(time.Microsecond),
	}
	s.billing = billing.NewService(billing.NewGormStore(s.db), s.gateway, billing.Options{
		YearlyDiscount: 0.1,
		Now:            func() time.Time { return s.now },
	})

	subscriptionHandler := NewSubscriptionHandler(s.billing)
	resourceHandler := NewResourceHandler(s.db)
	cronHandler := NewCronHandler(s.billing)
	webhookHandler := NewWebhookHandler(s.billing, stubWebhookParser{})

	r := gin.New()
	r.GET("/api/plans", subscriptionHandler.ListPlans)
	r.POST("/api/cron/check-subscriptions", middleware.CronAuth(testCronSecret), cronHandler.CheckSubscriptions)
	r.POST("/webhooks/paystack", webhookHandler.PaystackWebhook)

	auth := r.Group("/api", middleware.AuthMiddleware(testJWTSecret))
	auth.GET("/subscription", subscriptionHandler.GetSubscription)
	auth.POST("/subscription", subscriptionHandler.InitializeSubscription)
	auth.POST("/subscription/verify", subscriptionHandler.VerifySubscription)
	auth.POST("/subscription/cancel", subscriptionHandler.CancelSubscription)
	auth.POST("/subscription/status", subscriptionHandler.CheckStatus)
	auth.GET("/subscription/invoices", subscriptionHandler.ListInvoices)
	auth.GET("/limits/:resource", subscriptionHandler.GetLimit)
	auth.GET("/usage", subscriptionHandler.GetUsage)
	auth.GET("/businesses", resourceHandler.ListBusinesses)
	auth.POST("/businesses", middleware.RequirePlanLimit(s.billing, models.ResourceBusinesses), resourceHandler.CreateBusiness)
	auth.GET("/clients", resourceHandler.ListClients)
	auth.POST("/clients", middleware.RequirePlanLimit(s.billing, models.ResourceClients), resourceHandler.CreateClient)
	auth.POST("/invoices", middleware.RequirePlanLimit(s.billing, models.ResourceInvoicesPerMonth), resourceHandler.CreateInvoice)
	auth.POST("/expenses", middleware.RequirePlanLimit(s.billing, models.ResourceExpenses), resourceHandler.CreateExpense)

	s.router = r
	return s
}

func (s *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := utils.GenerateToken(userID, "owner@bisonbooks.test", testJWTSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func (s *testServer) do(method, path, authorization string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) plan(t *testing.T, name string) *models.SubscriptionPlan {
	t.Helper()
	var plan models.SubscriptionPlan
	require.NoError(t, s.db.Where("name = ?", name).First(&plan).Error)
	return &plan
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func TestListPlansIsPublic(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/plans", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Plans []models.SubscriptionPlan `json:"plans"`
	}
	decode(t, w, &body)
	require.Len(t, body.Plans, 3)
	assert.Equal(t, models.FreePlanName, body.Plans[0].Name)
	assert.Equal(t, "Enterprise", body.Plans[2].Name)
}

func TestGetSubscriptionWithoutRow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/subscription", s.token(t, uuid.New()), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscription": null, "plan": null}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/subscription", "", nil).Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	s := newTestServer(t)
	userID := uuid.New()
	auth := s.token(t, userID)
	free := s.plan(t, models.FreePlanName)
	basic := s.plan(t, billing.BasicPlanName)

	w := s.do(http.MethodPost, "/api/subscription", auth, gin.H{"plan_id": free.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	s.gateway.On("CreatePaymentLink", mock.Anything, mock.MatchedBy(func(req models.CheckoutRequest) bool {
		return req.Amount == 5400000 && req.Metadata.UserID == userID
	})).Return(&models.CheckoutSession{AuthorizationURL: "https://checkout.paystack.com/abc"}, nil).Once()

	w = s.do(http.MethodPost, "/api/subscription", auth, gin.H{"plan_id": basic.ID, "interval": "yearly"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var initialized billing.InitializeResult
	decode(t, w, &initialized)
	assert.Equal(t, "https://checkout.paystack.com/abc", initialized.PaymentURL)
	assert.Equal(t, 54000.0, initialized.Amount)
	assert.Equal(t, models.SubscriptionStatusPending, initialized.Subscription.Status)

	s.gateway.On("VerifyPayment", mock.Anything, initialized.Reference).Return(&models.PaymentVerification{
		Reference: initialized.Reference,
		Status:    models.PaymentStatusSuccess,
		Amount:    5400000,
		Metadata:  models.CheckoutMetadata{SubscriptionID: initialized.Subscription.ID},
	}, nil).Once()

	w = s.do(http.MethodPost, "/api/subscription/verify", auth, gin.H{
		"reference":       initialized.Reference,
		"subscription_id": initialized.Subscription.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// a running paid plan cannot be replaced
	w = s.do(http.MethodPost, "/api/subscription", auth, gin.H{"plan_id": free.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already have an active subscription")

	w = s.do(http.MethodGet, "/api/subscription/invoices", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var invoices struct {
		Invoices []models.SubscriptionInvoice `json:"invoices"`
	}
	decode(t, w, &invoices)
	require.Len(t, invoices.Invoices, 1)
	assert.Equal(t, 54000.0, invoices.Invoices[0].Amount)

	w = s.do(http.MethodPost, "/api/subscription/cancel", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cancelled struct {
		Success      bool                `json:"success"`
		Subscription models.Subscription `json:"subscription"`
	}
	decode(t, w, &cancelled)
	assert.True(t, cancelled.Success)
	assert.True(t, cancelled.Subscription.CancelAtPeriodEnd)
	assert.Equal(t, models.SubscriptionStatusActive, cancelled.Subscription.Status)

	w = s.do(http.MethodPost, "/api/subscription/status", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"downgraded":false`)
	s.gateway.AssertExpectations(t)
}

func TestInitializeSubscriptionValidation(t *testing.T) {
	s := newTestServer(t)
	auth := s.token(t, uuid.New())

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/subscription", auth, gin.H{}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/subscription", auth, gin.H{"plan_id": uuid.New()}).Code)

	free := s.plan(t, models.FreePlanName)
	w := s.do(http.MethodPost, "/api/subscription", auth, gin.H{"plan_id": free.ID, "interval": "weekly"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token, err := utils.GenerateToken(uuid.New(), "", testJWTSecret, time.Hour)
	require.NoError(t, err)
	basic := s.plan(t, billing.BasicPlanName)
	w = s.do(http.MethodPost, "/api/subscription", "Bearer "+token, gin.H{"plan_id": basic.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email address is required")
	s.gateway.AssertNotCalled(t, "CreatePaymentLink", mock.Anything, mock.Anything)
}

func TestVerifyRejectsOtherUsersSubscription(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	free := s.plan(t, models.FreePlanName)

	w := s.do(http.MethodPost, "/api/subscription", s.token(t, owner), gin.H{"plan_id": free.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var result billing.InitializeResult
	decode(t, w, &result)

	w = s.do(http.MethodPost, "/api/subscription/verify", s.token(t, uuid.New()), gin.H{
		"reference":       "SUB_REF",
		"subscription_id": result.Subscription.ID,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	s.gateway.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything)
}

func TestCancelWithoutSubscription(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/subscription/cancel", s.token(t, uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlanLimitGuardsResourceCreation(t *testing.T) {
	s := newTestServer(t)
	userID := uuid.New()
	auth := s.token(t, userID)

	w := s.do(http.MethodPost, "/api/businesses", auth, gin.H{"name": "Acme Ventures"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var business models.Business
	decode(t, w, &business)
	assert.Equal(t, "acme-ventures", business.Slug)
	assert.Equal(t, userID, business.UserID)

	for i := 0; i < 5; i++ {
		w = s.do(http.MethodPost, "/api/clients", auth, gin.H{
			"business_id": business.ID,
			"name":        fmt.Sprintf("Client %d", i),
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = s.do(http.MethodPost, "/api/clients", auth, gin.H{"business_id": business.ID, "name": "One too many"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "5 clients")

	w = s.do(http.MethodGet, "/api/limits/clients", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var limit billing.LimitResult
	decode(t, w, &limit)
	assert.False(t, limit.Allowed)
	assert.Equal(t, int64(5), limit.Current)

	w = s.do(http.MethodGet, "/api/limits/storage", auth, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/usage", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var usage struct {
		Usage []billing.LimitResult `json:"usage"`
	}
	decode(t, w, &usage)
	assert.Len(t, usage.Usage, len(models.ResourceKinds))
}

func TestResourcesRequireOwnedBusiness(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, uuid.New())
	stranger := s.token(t, uuid.New())

	w := s.do(http.MethodPost, "/api/businesses", owner, gin.H{"name": "Owner Co"})
	require.Equal(t, http.StatusCreated, w.Code)
	var business models.Business
	decode(t, w, &business)

	w = s.do(http.MethodPost, "/api/expenses", stranger, gin.H{"business_id": business.ID, "description": "Fuel"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/invoices", owner, gin.H{"amount": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/invoices", owner, gin.H{"business_id": business.ID, "client_id": uuid.New(), "amount": 10})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/invoices", owner, gin.H{"business_id": business.ID, "number": "INV-001", "amount": 10})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/api/businesses", stranger, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"businesses": []}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/clients?business_id=nope", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCronCheckSubscriptions(t *testing.T) {
	s := newTestServer(t)
	pro := s.plan(t, "Enterprise")
	ended := s.now.AddDate(0, 0, -1)
	start := ended.AddDate(0, -1, 0)

	require.NoError(t, s.db.Omit("Plan").Create(&models.Subscription{
		UserID:             uuid.New(),
		PlanID:             pro.ID,
		Status:             models.SubscriptionStatusActive,
		Interval:           models.BillingIntervalMonthly,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &ended,
	}).Error)

	w := s.do(http.MethodPost, "/api/cron/check-subscriptions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/cron/check-subscriptions", "Bearer wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/cron/check-subscriptions", "Bearer "+testCronSecret, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true, "count": 1}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/cron/check-subscriptions", "Bearer "+testCronSecret, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true, "count": 0}`, w.Body.String())
}

func TestCronCheckSubscriptionsFailure(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.db.Unscoped().Where("name = ?", models.FreePlanName).Delete(&models.SubscriptionPlan{}).Error)

	w := s.do(http.MethodPost, "/api/cron/check-subscriptions", "Bearer "+testCronSecret, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func (s *testServer) webhook(body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("X-Paystack-Signature", signature)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestPaystackWebhook(t *testing.T) {
	s := newTestServer(t)
	basic := s.plan(t, billing.BasicPlanName)

	pending := models.Subscription{
		UserID:   uuid.New(),
		PlanID:   basic.ID,
		Status:   models.SubscriptionStatusPending,
		Interval: models.BillingIntervalMonthly,
	}
	require.NoError(t, s.db.Omit("Plan").Create(&pending).Error)

	body, err := json.Marshal(gin.H{
		"event": "charge.success",
		"data": gin.H{
			"reference": "SUB_HOOK",
			"status":    "success",
			"metadata":  gin.H{"subscription_id": pending.ID},
		},
	})
	require.NoError(t, err)

	w := s.webhook(body, "bad-signature")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s.gateway.On("VerifyPayment", mock.Anything, "SUB_HOOK").Return(&models.PaymentVerification{
		Reference: "SUB_HOOK",
		Status:    models.PaymentStatusSuccess,
		Amount:    500000,
		Metadata:  models.CheckoutMetadata{SubscriptionID: pending.ID},
	}, nil).Once()

	w = s.webhook(body, utils.SignHMACSHA512Hex(body, testWebhookKey))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "processed")

	var activated models.Subscription
	require.NoError(t, s.db.First(&activated, "id = ?", pending.ID).Error)
	assert.Equal(t, models.SubscriptionStatusActive, activated.Status)
	s.gateway.AssertExpectations(t)
}

func TestPaystackWebhookIgnoresOtherEvents(t *testing.T) {
	s := newTestServer(t)

	body := []byte(`{"event":"transfer.success","data":{"reference":"TRF_1","status":"success"}}`)
	w := s.webhook(body, utils.SignHMACSHA512Hex(body, testWebhookKey))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
	s.gateway.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything)
}
