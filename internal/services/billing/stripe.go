package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/resumeforge/backend/internal/models"
	"github.com/resumeforge/backend/internal/services/ledger"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

type StripeService struct {
	secretKey     string
	webhookSecret string
	ledgerService *ledger.Service
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

func NewStripeService(cfg StripeConfig, ledgerService *ledger.Service) *StripeService {
	stripe.Key = cfg.SecretKey

	return &StripeService{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		ledgerService: ledgerService,
	}
}

// CreateCheckoutParams contains parameters for creating a checkout session
type CreateCheckoutParams struct {
	UserID        string
	PackID        uint
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
}

// CreateCheckoutSession creates a Stripe checkout session for a credit pack.
// The pack is resolved server-side from the catalog so the client cannot
// pick its own credit amount.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, params CreateCheckoutParams) (*stripe.CheckoutSession, *models.CreditPack, error) {
	pack, err := s.ledgerService.GetCreditPack(ctx, params.PackID)
	if err != nil {
		return nil, nil, err
	}
	if !pack.Active || pack.StripePriceID == "" {
		return nil, nil, models.NewValidationError("credit pack is not purchasable", nil)
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(pack.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata: map[string]string{
			"user_id":       params.UserID,
			"pack_id":       fmt.Sprintf("%d", pack.ID),
			"credit_amount": fmt.Sprintf("%.2f", pack.Credits),
		},
	}

	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess, pack, nil
}

// HandleWebhook processes Stripe webhook events
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("failed to verify webhook signature: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutSessionCompleted(ctx, event)
	case "payment_intent.payment_failed":
		return s.handlePaymentIntentFailed(ctx, event)
	default:
		// Ignore other event types
		return nil
	}
}

// handleCheckoutSessionCompleted credits a completed purchase. The Stripe
// event ID is the idempotency key, so webhook redelivery credits at most
// once regardless of how many times Stripe retries.
func (s *StripeService) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	userID := sess.Metadata["user_id"]
	creditAmount := 0.0
	if _, err := fmt.Sscanf(sess.Metadata["credit_amount"], "%f", &creditAmount); err != nil {
		return fmt.Errorf("failed to parse credit amount: %w", err)
	}

	if userID == "" || creditAmount <= 0 {
		return fmt.Errorf("invalid checkout session metadata")
	}

	metadataMap := map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_session_id": sess.ID,
		"pack_id":           sess.Metadata["pack_id"],
		"amount_paid":       float64(sess.AmountTotal) / 100.0, // Convert from cents
	}
	if sess.PaymentIntent != nil {
		metadataMap["stripe_payment_intent_id"] = sess.PaymentIntent.ID
	}
	metadataJSON, err := json.Marshal(metadataMap)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.ledgerService.Credit(ctx, models.CreditParams{
		UserID:         userID,
		Amount:         creditAmount,
		Action:         models.ActionPurchase,
		IdempotencyKey: event.ID,
		Description:    fmt.Sprintf("Credit purchase via Stripe (%.2f credits)", creditAmount),
		Metadata:       string(metadataJSON),
	})
	if err != nil {
		return fmt.Errorf("failed to add credits: %w", err)
	}

	return nil
}

// handlePaymentIntentFailed logs failed payment intents; no ledger change.
func (s *StripeService) handlePaymentIntentFailed(ctx context.Context, event stripe.Event) error {
	fiberlog.Warnf("Stripe payment failed: event=%s", event.ID)
	return nil
}
