// Package httpx exposes the payment core over HTTP: the JSON API the app
// calls and the raw webhook endpoint the provider calls.
package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/you/charter-booking/internal/domain"
	"github.com/you/charter-booking/internal/service"
)

type API struct {
	intents  *service.IntentService
	connect  *service.ConnectService
	balance  *service.BalanceService
	webhooks *service.WebhookProcessor
}

func NewAPI(intents *service.IntentService, connect *service.ConnectService, balance *service.BalanceService, webhooks *service.WebhookProcessor) *API {
	return &API{intents: intents, connect: connect, balance: balance, webhooks: webhooks}
}

func (a *API) Register(r *gin.Engine) {
	r.POST("/webhook", a.handleWebhook)
	r.POST("/payment-intents", a.createPaymentIntent)
	r.POST("/connect-accounts", a.createConnectAccount)
	r.POST("/connect-accounts/:id/onboarding-link", a.createOnboardingLink)
	r.GET("/connect-accounts/:id", a.getConnectAccount)
	r.GET("/payment-status", a.paymentStatus)
	r.POST("/balance-payments", a.scheduleBalance)
}

// ---------- payment intents ----------

type createPaymentIntentBody struct {
	BookingID            string            `json:"booking_id" binding:"required"`
	Amount               decimal.Decimal   `json:"amount" binding:"required"`
	PayeeAccountID       string            `json:"payee_account_id" binding:"required"`
	ApplicationFeeAmount int64             `json:"application_fee_amount"`
	CustomerEmail        string            `json:"customer_email"`
	Metadata             map[string]string `json:"metadata"`
}

func (a *API) createPaymentIntent(c *gin.Context) {
	var body createPaymentIntentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := a.intents.CreateDepositIntent(c.Request.Context(), service.CreateDepositIn{
		BookingID:      body.BookingID,
		GrossAmount:    body.Amount,
		PayeeAccountID: body.PayeeAccountID,
		FeeAmount:      body.ApplicationFeeAmount,
		CustomerEmail:  body.CustomerEmail,
		Metadata:       body.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"client_secret": out.ClientSecret,
		"intent":        out.Record,
	})
}

func (a *API) paymentStatus(c *gin.Context) {
	if intentID := c.Query("intent_id"); intentID != "" {
		status, err := a.intents.GetIntentStatus(c.Request.Context(), intentID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"intent_id": intentID, "status": status})
		return
	}
	if bookingID := c.Query("booking_id"); bookingID != "" {
		recs, err := a.intents.IntentsByBooking(c.Request.Context(), bookingID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"booking_id": bookingID, "intents": recs})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "intent_id or booking_id is required"})
}

// ---------- connect accounts ----------

type createConnectAccountBody struct {
	OwnerID string `json:"owner_id" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Country string `json:"country"`
}

func (a *API) createConnectAccount(c *gin.Context) {
	var body createConnectAccountBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := a.connect.CreateAccount(c.Request.Context(), service.OwnerInfo{
		OwnerID: body.OwnerID,
		Email:   body.Email,
		Country: body.Country,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"account":        out.Account,
		"onboarding_url": out.OnboardingURL,
	})
}

type onboardingLinkBody struct {
	RefreshURL string `json:"refresh_url"`
	ReturnURL  string `json:"return_url"`
}

func (a *API) createOnboardingLink(c *gin.Context) {
	var body onboardingLinkBody
	// body is optional; defaults come from configuration
	_ = c.ShouldBindJSON(&body)

	url, err := a.connect.CreateOnboardingLink(c.Request.Context(), c.Param("id"), body.RefreshURL, body.ReturnURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"onboarding_url": url})
}

func (a *API) getConnectAccount(c *gin.Context) {
	acc, err := a.connect.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

// ---------- balance payments ----------

type scheduleBalanceBody struct {
	BookingID            string            `json:"booking_id" binding:"required"`
	CustomerEmail        string            `json:"customer_email" binding:"required"`
	BalanceAmount        decimal.Decimal   `json:"balance_amount" binding:"required"`
	DueDate              time.Time         `json:"due_date" binding:"required"`
	PayeeAccountID       string            `json:"payee_account_id" binding:"required"`
	ApplicationFeeAmount int64             `json:"application_fee_amount"`
	Metadata             map[string]string `json:"metadata"`
}

func (a *API) scheduleBalance(c *gin.Context) {
	var body scheduleBalanceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := a.balance.ScheduleBalance(c.Request.Context(), service.ScheduleBalanceIn{
		BookingID:      body.BookingID,
		CustomerEmail:  body.CustomerEmail,
		BalanceAmount:  body.BalanceAmount,
		DueDate:        body.DueDate,
		PayeeAccountID: body.PayeeAccountID,
		FeeAmount:      body.ApplicationFeeAmount,
		Metadata:       body.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment_url": out.PaymentURL,
		"customer_id": out.CustomerID,
		"intent":      out.Record,
	})
}

// ---------- error mapping ----------

func writeError(c *gin.Context, err error) {
	var (
		ve *domain.ValidationError
		se *domain.SignatureError
		nf *domain.NotFoundError
		sc *domain.StateConflictError
		pe *domain.ProviderError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.As(err, &se):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.As(err, &sc):
		c.JSON(http.StatusConflict, gin.H{"error": sc.Error()})
	case errors.As(err, &pe):
		c.JSON(http.StatusBadGateway, gin.H{"error": pe.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
