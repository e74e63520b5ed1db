package app

import (
	"testing"
	"time"

	"chatrelay/pkg/billing"
	"chatrelay/pkg/domain"
)

func TestCreateCheckoutSessionUpgradesImmediately(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	user := signUpUser(t, a, "buyer@example.com")

	session, err := a.CreateCheckoutSession(user)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !session.Success || session.URL != "http://localhost:3000/stripe/success" {
		t.Fatalf("unexpected session: %+v", session)
	}

	got, _, err := a.store.GetUserByID(user.ID)
	if err != nil {
		t.Fatalf("fetch user: %v", err)
	}
	if got.Role != domain.RolePremium {
		t.Fatalf("role not upgraded: %q", got.Role)
	}
	if got.SubscriptionStart == nil || got.SubscriptionEnd == nil {
		t.Fatalf("subscription window missing")
	}
	if !a.IsPremium(got) {
		t.Fatalf("upgraded user not premium")
	}
}

func subscriptionEvent(eventType, userID, status string, start, end int64) billing.Event {
	var ev billing.Event
	ev.Type = eventType
	ev.Data.Object = billing.Subscription{
		ID:                 "sub_1",
		Customer:           "cus_1",
		Status:             status,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		Metadata:           map[string]string{"userId": userID},
	}
	return ev
}

func TestApplySubscriptionEventUpdates(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	user := signUpUser(t, a, "sub@example.com")

	now := time.Now().UTC()
	ev := subscriptionEvent(billing.EventSubscriptionUpdated, user.ID, "active",
		now.Unix(), now.AddDate(0, 1, 0).Unix())
	if err := a.ApplySubscriptionEvent(ev); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, _, _ := a.store.GetUserByID(user.ID)
	if got.Role != domain.RolePremium || got.StripeCustomerID != "cus_1" {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.SubscriptionEnd == nil || !a.IsPremium(got) {
		t.Fatalf("window not applied: %+v", got)
	}
}

func TestApplySubscriptionEventDeleted(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	user := signUpUser(t, a, "cancel@example.com")
	if _, err := a.AdminUpdateUserRole(user.ID, domain.RolePremium); err != nil {
		t.Fatalf("to premium: %v", err)
	}

	ev := subscriptionEvent(billing.EventSubscriptionDeleted, user.ID, "canceled", 0, 0)
	if err := a.ApplySubscriptionEvent(ev); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, _, _ := a.store.GetUserByID(user.ID)
	if got.Role != domain.RoleFree {
		t.Fatalf("role not downgraded: %q", got.Role)
	}
	if got.SubscriptionStart != nil || got.SubscriptionEnd != nil {
		t.Fatalf("window not cleared: %+v", got)
	}
}

func TestApplySubscriptionEventIgnoresUnknown(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	user := signUpUser(t, a, "noop@example.com")

	// Unhandled event type.
	ev := subscriptionEvent("invoice.paid", user.ID, "active", 0, 0)
	if err := a.ApplySubscriptionEvent(ev); err != nil {
		t.Fatalf("unhandled type: %v", err)
	}
	// Unknown user.
	ev = subscriptionEvent(billing.EventSubscriptionUpdated, "no-such-user", "active", 0, 0)
	if err := a.ApplySubscriptionEvent(ev); err != nil {
		t.Fatalf("unknown user: %v", err)
	}
	// Missing metadata.
	ev = subscriptionEvent(billing.EventSubscriptionUpdated, "", "active", 0, 0)
	if err := a.ApplySubscriptionEvent(ev); err != nil {
		t.Fatalf("missing metadata: %v", err)
	}
	got, _, _ := a.store.GetUserByID(user.ID)
	if got.Role != domain.RoleFree {
		t.Fatalf("user should be untouched: %+v", got)
	}
}
