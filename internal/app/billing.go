package app

import (
	"fmt"

	"chatrelay/pkg/billing"
	"chatrelay/pkg/domain"
)

// CheckoutSession is the mock checkout response: no payment provider is
// called, the upgrade is applied immediately.
type CheckoutSession struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// CreateCheckoutSession grants the caller a 30-day premium window and
// returns a success redirect.
func (a *App) CreateCheckoutSession(user domain.User) (CheckoutSession, error) {
	now := a.now().UTC()
	end := now.AddDate(0, 0, 30)
	user.Role = domain.RolePremium
	user.SubscriptionStart = &now
	user.SubscriptionEnd = &end
	user.UpdatedAt = now
	if err := a.store.SaveUser(user); err != nil {
		return CheckoutSession{}, fmt.Errorf("upgrade user: %w", err)
	}
	return CheckoutSession{
		Success: true,
		URL:     a.frontendOrigin + "/stripe/success",
		Message: "upgraded to premium",
	}, nil
}

// ApplySubscriptionEvent updates the subscribed user from a verified
// webhook event. Unhandled event types and unknown users are ignored.
func (a *App) ApplySubscriptionEvent(event billing.Event) error {
	switch event.Type {
	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
	default:
		return nil
	}
	sub := event.Data.Object
	userID := sub.UserID()
	if userID == "" {
		return nil
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return nil
	}
	if event.Type == billing.EventSubscriptionUpdated && sub.Active() {
		user.Role = domain.RolePremium
		user.SubscriptionStart, user.SubscriptionEnd = sub.Period()
	} else {
		// Deleted or no longer active: drop back to free. Admins keep
		// their role, only the window is cleared.
		if user.Role == domain.RolePremium {
			user.Role = domain.RoleFree
		}
		user.SubscriptionStart = nil
		user.SubscriptionEnd = nil
	}
	if sub.Customer != "" {
		user.StripeCustomerID = sub.Customer
	}
	user.UpdatedAt = a.now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
