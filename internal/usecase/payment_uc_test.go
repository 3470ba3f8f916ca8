// File: internal/usecase/payment_uc_test.go
package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
)

func newLedgerStack() (*paymentUC, *memPaymentRepo) {
	payments := newMemPaymentRepo()
	log := zerolog.Nop()
	return NewPaymentLedger(payments, &mockTxManager{}, &log), payments
}

func evtAt(id string, at time.Time) LedgerEvent {
	return LedgerEvent{ID: id, Type: "test.event", At: at}
}

func TestRecordSuccessCreatesRowOnce(t *testing.T) {
	uc, payments := newLedgerStack()
	now := time.Now()

	p, err := uc.RecordSuccess(context.Background(), evtAt("evt_1", now), "pi_1", "user-1", 1000, "eur")
	if err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if p.Status != model.PaymentStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", p.Status)
	}
	if !p.HasEvent("evt_1") {
		t.Fatalf("ledger entry missing")
	}
	if payments.count() != 1 {
		t.Fatalf("expected 1 row, got %d", payments.count())
	}

	// Redelivery of the same event id mutates nothing.
	saves := payments.saves
	p2, err := uc.RecordSuccess(context.Background(), evtAt("evt_1", now), "pi_1", "user-1", 1000, "eur")
	if err != nil {
		t.Fatalf("RecordSuccess redelivery: %v", err)
	}
	if payments.saves != saves {
		t.Fatalf("redelivery wrote a row")
	}
	if payments.count() != 1 {
		t.Fatalf("redelivery created a row")
	}
	if len(p2.AppliedEvents) != 1 {
		t.Fatalf("ledger grew on redelivery")
	}
}

func TestRecordSuccessUnknownIntentWithoutOwner(t *testing.T) {
	uc, payments := newLedgerStack()

	p, err := uc.RecordSuccess(context.Background(), evtAt("evt_1", time.Now()), "pi_ghost", "", 1000, "eur")
	if err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if p != nil {
		t.Fatalf("expected no row, got %+v", p)
	}
	if payments.count() != 0 {
		t.Fatalf("row synthesized without owner")
	}
}

func TestRecordFailureNeverSynthesizesRows(t *testing.T) {
	uc, payments := newLedgerStack()

	p, err := uc.RecordFailure(context.Background(), evtAt("evt_1", time.Now()), "pi_ghost", "card_declined")
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if p != nil || payments.count() != 0 {
		t.Fatalf("failure event synthesized a row")
	}
}

func TestRecordFailureMarksExistingRow(t *testing.T) {
	uc, _ := newLedgerStack()
	now := time.Now()

	if _, err := uc.RecordSuccess(context.Background(), evtAt("evt_1", now), "pi_1", "user-1", 1000, "eur"); err != nil {
		t.Fatal(err)
	}
	p, err := uc.RecordFailure(context.Background(), evtAt("evt_2", now.Add(time.Second)), "pi_1", "card_declined")
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if p.Status != model.PaymentStatusFailed || p.FailureReason != "card_declined" {
		t.Fatalf("failure not applied: %+v", p)
	}
}

func TestRefundAccounting(t *testing.T) {
	uc, _ := newLedgerStack()
	now := time.Now()
	ctx := context.Background()

	if _, err := uc.RecordSuccess(ctx, evtAt("evt_1", now), "pi_1", "user-1", 100, "eur"); err != nil {
		t.Fatal(err)
	}

	// Three partial refunds of 30, 40 and 30. The provider resends the full
	// cumulative refund list on every charge.refunded event.
	r1 := model.Refund{StripeRefundID: "re_1", Amount: 30, CreatedAt: now.Add(time.Minute)}
	r2 := model.Refund{StripeRefundID: "re_2", Amount: 40, CreatedAt: now.Add(2 * time.Minute)}
	r3 := model.Refund{StripeRefundID: "re_3", Amount: 30, CreatedAt: now.Add(3 * time.Minute)}

	p, err := uc.RecordRefunds(ctx, evtAt("evt_r1", now.Add(time.Minute)), "pi_1", []model.Refund{r1})
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != model.PaymentStatusSucceeded || p.RefundedAmount() != 30 || p.NetAmount() != 70 {
		t.Fatalf("after first refund: status=%s refunded=%d net=%d", p.Status, p.RefundedAmount(), p.NetAmount())
	}

	p, err = uc.RecordRefunds(ctx, evtAt("evt_r2", now.Add(2*time.Minute)), "pi_1", []model.Refund{r1, r2})
	if err != nil {
		t.Fatal(err)
	}
	if p.RefundedAmount() != 70 || p.Status != model.PaymentStatusSucceeded {
		t.Fatalf("after second refund: status=%s refunded=%d", p.Status, p.RefundedAmount())
	}

	p, err = uc.RecordRefunds(ctx, evtAt("evt_r3", now.Add(3*time.Minute)), "pi_1", []model.Refund{r1, r2, r3})
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != model.PaymentStatusRefunded || p.RefundedAmount() != 100 || p.NetAmount() != 0 {
		t.Fatalf("after full refund: status=%s refunded=%d net=%d", p.Status, p.RefundedAmount(), p.NetAmount())
	}
	if p.RefundedAt == nil {
		t.Fatalf("refunded_at not stamped")
	}

	// Redelivery of the final event changes nothing.
	p, err = uc.RecordRefunds(ctx, evtAt("evt_r3", now.Add(3*time.Minute)), "pi_1", []model.Refund{r1, r2, r3})
	if err != nil {
		t.Fatal(err)
	}
	if p.RefundedAmount() != 100 || len(p.Refunds) != 3 {
		t.Fatalf("redelivery double-counted refunds: %d over %d records", p.RefundedAmount(), len(p.Refunds))
	}
}

func TestRecordDispute(t *testing.T) {
	uc, _ := newLedgerStack()
	now := time.Now()
	ctx := context.Background()

	if _, err := uc.RecordSuccess(ctx, evtAt("evt_1", now), "pi_1", "user-1", 1000, "eur"); err != nil {
		t.Fatal(err)
	}
	p, err := uc.RecordDispute(ctx, evtAt("evt_d", now.Add(time.Hour)), "pi_1", "fraudulent")
	if err != nil {
		t.Fatalf("RecordDispute: %v", err)
	}
	if p.Status != model.PaymentStatusDisputed {
		t.Fatalf("expected disputed, got %s", p.Status)
	}

	// Unknown intent is accepted and skipped.
	p, err = uc.RecordDispute(ctx, evtAt("evt_d2", now), "pi_ghost", "fraudulent")
	if err != nil || p != nil {
		t.Fatalf("unknown intent dispute: p=%v err=%v", p, err)
	}
}

func TestAttachSessionIsIdempotent(t *testing.T) {
	uc, payments := newLedgerStack()
	now := time.Now()
	ctx := context.Background()

	subID := "sub-row-1"
	att := SessionAttachment{
		SessionID:      "cs_1",
		IntentID:       "pi_1",
		UserID:         "user-1",
		SubscriptionID: &subID,
		Amount:         999,
		Currency:       "eur",
		Paid:           true,
		At:             now,
	}

	p, err := uc.AttachSession(ctx, att)
	if err != nil {
		t.Fatalf("AttachSession: %v", err)
	}
	if p.Status != model.PaymentStatusSucceeded || p.StripeSessionID != "cs_1" || p.StripePaymentIntentID != "pi_1" {
		t.Fatalf("attachment incomplete: %+v", p)
	}
	if payments.count() != 1 {
		t.Fatalf("expected 1 row, got %d", payments.count())
	}

	saves := payments.saves
	if _, err := uc.AttachSession(ctx, att); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	if payments.count() != 1 || payments.saves != saves {
		t.Fatalf("re-attach mutated state: rows=%d", payments.count())
	}
}

func TestAttachSessionBackfillsIntentRow(t *testing.T) {
	uc, payments := newLedgerStack()
	now := time.Now()
	ctx := context.Background()

	// Intent event landed first, session attach arrives later.
	if _, err := uc.RecordSuccess(ctx, evtAt("evt_1", now), "pi_1", "user-1", 999, "eur"); err != nil {
		t.Fatal(err)
	}

	p, err := uc.AttachSession(ctx, SessionAttachment{
		SessionID: "cs_1",
		IntentID:  "pi_1",
		UserID:    "user-1",
		Amount:    999,
		Currency:  "eur",
		Paid:      true,
		At:        now.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("AttachSession: %v", err)
	}
	if payments.count() != 1 {
		t.Fatalf("attach created a second row for the same intent")
	}
	if p.StripeSessionID != "cs_1" {
		t.Fatalf("session id not backfilled")
	}
}
