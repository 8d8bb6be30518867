package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"market-service/config"
	"market-service/internal/apperr"
	"market-service/internal/models"
	"market-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	verifyIdempotencyTTL = 24 * time.Hour
	verifyLockTTL        = 30 * time.Second
)

// PaymentService confirms payments reported by the checkout page
type PaymentService struct {
	orders      OrderRepository
	guard       PaymentGuard
	events      Events
	keySecret   string
	devPayments bool
	logger      *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(orders OrderRepository, guard PaymentGuard, events Events, payment config.PaymentConfig, devPayments bool) *PaymentService {
	return &PaymentService{
		orders:      orders,
		guard:       guard,
		events:      events,
		keySecret:   payment.KeySecret,
		devPayments: devPayments,
		logger:      util.GetLogger(),
	}
}

// VerifyPaymentRequest is the payment widget's callback payload
type VerifyPaymentRequest struct {
	DevMode           bool   `json:"dev_mode" form:"dev_mode"`
	OrderID           int64  `json:"order_id" form:"order_id"`
	RazorpayOrderID   string `json:"razorpay_order_id" form:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id" form:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature" form:"razorpay_signature"`
}

// VerifyPaymentResult reports the confirmed order
type VerifyPaymentResult struct {
	OrderID     int64  `json:"order_id"`
	Status      string `json:"payment_status"`
	AlreadyPaid bool   `json:"already_paid"`
}

// VerifySignature checks a gateway signature: hex HMAC-SHA256 over
// "<gateway order id>|<gateway payment id>"
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func verifyKey(orderID int64) string {
	return fmt.Sprintf("payment-verify:%d", orderID)
}

// VerifyPayment marks the order paid, records a confirmed tracking row and
// clears the cart, all in one transaction. Replays for an order that is
// already paid succeed without changing anything.
func (s *PaymentService) VerifyPayment(ctx context.Context, userID int64, req *VerifyPaymentRequest) (*VerifyPaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.VerifyPayment",
		attribute.Int64("order_id", req.OrderID),
		attribute.Bool("dev_mode", req.DevMode))
	defer span.End()

	mode := "gateway"
	if req.DevMode {
		mode = "dev"
	}

	if err := s.checkMode(req); err != nil {
		util.PaymentVerificationsTotal.WithLabelValues(mode, "rejected").Inc()
		return nil, err
	}

	order, err := loadOwnedOrder(ctx, s.orders, userID, req.OrderID)
	if err != nil {
		util.PaymentVerificationsTotal.WithLabelValues(mode, "rejected").Inc()
		return nil, err
	}

	if !req.DevMode && !VerifySignature(s.keySecret, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		util.PaymentVerificationsTotal.WithLabelValues(mode, "invalid_signature").Inc()
		s.logger.Warn("Payment signature mismatch",
			zap.Int64("order_id", order.ID),
			zap.Int64("user_id", userID))
		return nil, apperr.Validation("invalid signature")
	}

	key := verifyKey(order.ID)

	if order.PaymentStatus == models.PaymentStatusPaid {
		util.PaymentVerificationsTotal.WithLabelValues(mode, "replay").Inc()
		return &VerifyPaymentResult{OrderID: order.ID, Status: models.PaymentStatusPaid, AlreadyPaid: true}, nil
	}

	done, err := s.guard.CheckIdempotencyKey(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to check idempotency key", zap.String("key", key), zap.Error(err))
	} else if done {
		util.PaymentVerificationsTotal.WithLabelValues(mode, "replay").Inc()
		return &VerifyPaymentResult{OrderID: order.ID, Status: models.PaymentStatusPaid, AlreadyPaid: true}, nil
	}

	token, err := s.guard.AcquireLock(ctx, key, verifyLockTTL)
	switch {
	case err != nil:
		s.logger.Warn("Failed to acquire verification lock", zap.String("key", key), zap.Error(err))
	case token == "":
		util.PaymentVerificationsTotal.WithLabelValues(mode, "locked").Inc()
		return nil, apperr.Conflict("payment verification already in progress")
	default:
		defer func() {
			if err := s.guard.ReleaseLock(context.Background(), key, token); err != nil {
				s.logger.Warn("Failed to release verification lock", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	applied, err := s.orders.ConfirmPaymentTx(ctx, order.ID, userID, req.RazorpayOrderID, req.RazorpayPaymentID)
	if err != nil {
		util.PaymentVerificationsTotal.WithLabelValues(mode, "error").Inc()
		return nil, apperr.Internal(util.RecordError(span, err), "failed to confirm payment")
	}

	if err := s.guard.SetIdempotencyKey(ctx, key, models.PaymentStatusPaid, verifyIdempotencyTTL); err != nil {
		s.logger.Warn("Failed to set idempotency key", zap.String("key", key), zap.Error(err))
	}

	if !applied {
		util.PaymentVerificationsTotal.WithLabelValues(mode, "replay").Inc()
		return &VerifyPaymentResult{OrderID: order.ID, Status: models.PaymentStatusPaid, AlreadyPaid: true}, nil
	}

	util.PaymentVerificationsTotal.WithLabelValues(mode, "confirmed").Inc()
	util.OrdersConfirmedTotal.Inc()
	s.logger.Info("Payment confirmed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.Bool("dev_mode", req.DevMode))

	event := &models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderConfirmed,
			Timestamp: time.Now().UTC(),
		},
		OrderID:   order.ID,
		UserID:    userID,
		PaymentID: req.RazorpayPaymentID,
		DevMode:   req.DevMode,
	}
	if err := s.events.PublishOrderConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderConfirmed event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	return &VerifyPaymentResult{OrderID: order.ID, Status: models.PaymentStatusPaid}, nil
}

func (s *PaymentService) checkMode(req *VerifyPaymentRequest) error {
	if req.OrderID <= 0 {
		return apperr.Validation("order ID is required")
	}
	if req.DevMode {
		if !s.devPayments {
			return apperr.Validation("simulated payments are disabled")
		}
		return nil
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return apperr.Validation("payment details are required")
	}
	if s.keySecret == "" {
		return apperr.New(apperr.CodeDependency, "payment gateway is not configured")
	}
	return nil
}

// MarkFailed records a failed payment. The cart is left untouched so the
// customer can retry.
func (s *PaymentService) MarkFailed(ctx context.Context, userID, orderID int64, reason string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.MarkFailed", attribute.Int64("order_id", orderID))
	defer span.End()

	order, err := loadOwnedOrder(ctx, s.orders, userID, orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return apperr.Conflict("order is already paid")
	}

	applied, err := s.orders.MarkPaymentFailed(ctx, order.ID)
	if err != nil {
		return apperr.Internal(util.RecordError(span, err), "failed to update payment status")
	}
	if !applied {
		return nil
	}

	util.OrdersFailedTotal.WithLabelValues("payment_failed").Inc()
	s.logger.Info("Payment marked failed", zap.Int64("order_id", order.ID), zap.String("reason", reason))

	event := &models.OrderPaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaymentFailed,
			Timestamp: time.Now().UTC(),
		},
		OrderID: order.ID,
		UserID:  userID,
		Reason:  reason,
	}
	if err := s.events.PublishOrderPaymentFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPaymentFailed event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
	return nil
}
