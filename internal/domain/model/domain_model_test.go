package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestApplyRefundTransitions(t *testing.T) {
	now := time.Now()
	p, err := NewPayment("pay-1", "user-1", 100, "eur", now)
	if err != nil {
		t.Fatal(err)
	}
	p.MarkSucceeded(now)

	if !p.ApplyRefund("re_1", 30, "", now) {
		t.Fatal("first refund rejected")
	}
	if p.Status != PaymentStatusSucceeded || p.NetAmount() != 70 {
		t.Fatalf("partial refund: status=%s net=%d", p.Status, p.NetAmount())
	}

	// Same refund id again is a no-op.
	if p.ApplyRefund("re_1", 30, "", now) {
		t.Fatal("duplicate refund id accepted")
	}
	if p.RefundedAmount() != 30 {
		t.Fatalf("duplicate refund double-counted: %d", p.RefundedAmount())
	}

	p.ApplyRefund("re_2", 70, "", now)
	if p.Status != PaymentStatusRefunded || p.NetAmount() != 0 {
		t.Fatalf("full refund: status=%s net=%d", p.Status, p.NetAmount())
	}
	if p.RefundedAt == nil {
		t.Fatal("refunded_at not stamped")
	}
}

func TestRecordEventDeduplicates(t *testing.T) {
	now := time.Now()
	p, _ := NewPayment("pay-1", "user-1", 100, "eur", now)

	p.RecordEvent("payment_intent.succeeded", "evt_1", now)
	p.RecordEvent("payment_intent.succeeded", "evt_1", now)
	if len(p.AppliedEvents) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(p.AppliedEvents))
	}
	if !p.HasEvent("evt_1") || p.HasEvent("evt_2") {
		t.Fatal("HasEvent lookup broken")
	}
}

func TestApplySnapshotOrdering(t *testing.T) {
	now := time.Now()
	plan, _ := NewPlan("monthly", "Monthly", 999, "eur", 30, "price_monthly")
	sub, err := NewSubscription("row-1", "user-1", plan, "sub_1", "cus_1", now)
	if err != nil {
		t.Fatal(err)
	}

	if !sub.ApplySnapshot(&SubscriptionSnapshot{
		SubscriptionID: "sub_1",
		Status:         SubscriptionStatusActive,
		PeriodEnd:      now.Add(30 * 24 * time.Hour),
		EventAt:        now,
	}) {
		t.Fatal("fresh snapshot rejected")
	}

	if sub.ApplySnapshot(&SubscriptionSnapshot{
		SubscriptionID: "sub_1",
		Status:         SubscriptionStatusPastDue,
		EventAt:        now.Add(-time.Minute),
	}) {
		t.Fatal("stale snapshot applied")
	}
	if sub.Status != SubscriptionStatusActive {
		t.Fatalf("stale snapshot mutated status: %s", sub.Status)
	}

	// Equal timestamps are last-applied-wins, not dropped.
	if !sub.ApplySnapshot(&SubscriptionSnapshot{
		SubscriptionID: "sub_1",
		Status:         SubscriptionStatusPastDue,
		EventAt:        now,
	}) {
		t.Fatal("equal-timestamp snapshot rejected")
	}
	if sub.Status != SubscriptionStatusPastDue {
		t.Fatalf("expected past_due, got %s", sub.Status)
	}
}

func TestNextBillingDate(t *testing.T) {
	now := time.Now()
	plan, _ := NewPlan("monthly", "Monthly", 999, "eur", 30, "")
	sub, _ := NewSubscription("row-1", "user-1", plan, "", "", now)

	next := sub.NextBillingDate()
	if next == nil || !next.Equal(sub.CurrentPeriodEnd) {
		t.Fatalf("expected period end as next billing date")
	}

	sub.CancelAtPeriodEnd = true
	if sub.NextBillingDate() != nil {
		t.Fatal("lapsing subscription has no next billing date")
	}
}

func TestCacheStatusForIsExhaustive(t *testing.T) {
	cases := map[SubscriptionStatus]UserSubscriptionStatus{
		SubscriptionStatusActive:    UserSubStatusActive,
		SubscriptionStatusTrialing:  UserSubStatusTrialing,
		SubscriptionStatusPastDue:   UserSubStatusPastDue,
		SubscriptionStatusExpired:   UserSubStatusExpired,
		SubscriptionStatusCancelled: UserSubStatusCancelled,
		SubscriptionStatus("bogus"): UserSubStatusNone,
	}
	for in, want := range cases {
		if got := CacheStatusFor(in); got != want {
			t.Errorf("CacheStatusFor(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestReflectSubscriptionIdempotent(t *testing.T) {
	now := time.Now()
	u, _ := NewUser("user-1", "u@example.com", "u1")
	plan, _ := NewPlan("monthly", "Monthly", 999, "eur", 30, "")
	sub, _ := NewSubscription("row-1", "user-1", plan, "", "", now)

	u.ReflectSubscription(sub)
	u.ReflectSubscription(sub)
	if u.SubscriptionStatus != UserSubStatusActive {
		t.Fatalf("expected active cache, got %s", u.SubscriptionStatus)
	}
	if u.SubscriptionID == nil || *u.SubscriptionID != "row-1" {
		t.Fatal("subscription reference not linked")
	}
}

func TestSubscriptionPayloadPeriodFallback(t *testing.T) {
	raw := []byte(`{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "active",
		"cancel_at_period_end": false,
		"items": {"data": [{
			"price": {"id": "price_monthly"},
			"current_period_start": 1700000000,
			"current_period_end": 1702592000
		}]}
	}`)
	var payload SubscriptionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatal(err)
	}
	snap := payload.Snapshot(time.Now())
	if snap.PriceID != "price_monthly" {
		t.Fatalf("price id not read from item: %q", snap.PriceID)
	}
	if snap.PeriodStart.Unix() != 1700000000 || snap.PeriodEnd.Unix() != 1702592000 {
		t.Fatalf("period not read from item: %v .. %v", snap.PeriodStart, snap.PeriodEnd)
	}
}

func TestSubscriptionPayloadTopLevelPeriodWins(t *testing.T) {
	raw := []byte(`{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "active",
		"current_period_start": 1600000000,
		"current_period_end": 1602592000,
		"items": {"data": [{
			"price": {"id": "price_monthly"},
			"current_period_start": 1700000000,
			"current_period_end": 1702592000
		}]}
	}`)
	var payload SubscriptionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatal(err)
	}
	snap := payload.Snapshot(time.Now())
	if snap.PeriodStart.Unix() != 1600000000 || snap.PeriodEnd.Unix() != 1602592000 {
		t.Fatalf("top-level period ignored: %v .. %v", snap.PeriodStart, snap.PeriodEnd)
	}
}

func TestProviderEventValidateAndDecode(t *testing.T) {
	evt := &ProviderEvent{ID: "evt_1", Type: "checkout.session.completed", Object: json.RawMessage(`{"id":"cs_1","payment_status":"paid"}`)}
	if err := evt.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	var sess CheckoutSessionPayload
	if err := evt.DecodeObject(&sess); err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	if sess.ID != "cs_1" {
		t.Fatalf("decoded wrong payload: %+v", sess)
	}

	bad := &ProviderEvent{Type: "x"}
	if err := bad.Validate(); err == nil {
		t.Fatal("event without id validated")
	}
	empty := &ProviderEvent{ID: "evt", Type: "x"}
	if err := empty.DecodeObject(&sess); err == nil {
		t.Fatal("empty object decoded")
	}
}
