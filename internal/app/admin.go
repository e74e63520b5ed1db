package app

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"chatrelay/pkg/domain"
)

const (
	defaultUserPage  = 1
	defaultUserLimit = 10
	chatStatsWindow  = 30 // days
	revenueMonths    = 12
)

// UserStats is the role breakdown of the user base.
type UserStats struct {
	Total   int `json:"total"`
	Free    int `json:"free"`
	Premium int `json:"premium"`
	Admin   int `json:"admin"`
}

// ChatStats holds chat/message totals plus a trailing daily series.
type ChatStats struct {
	TotalChats    int                     `json:"totalChats"`
	TotalMessages int                     `json:"totalMessages"`
	Daily         []domain.DailyChatCount `json:"daily"`
}

// MonthlyRevenue is one bucket of the synthetic revenue series.
type MonthlyRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

// RevenueStats estimates recurring revenue from the premium user count.
// The monthly series is synthetic; there is no payment ledger behind it.
type RevenueStats struct {
	PremiumUsers   int              `json:"premiumUsers"`
	MonthlyRevenue float64          `json:"monthlyRevenue"`
	Monthly        []MonthlyRevenue `json:"monthly"`
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users      []domain.User `json:"users"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
}

// AdminUserStats returns user counts broken down by role.
func (a *App) AdminUserStats() (UserStats, error) {
	counts, err := a.store.UserCountsByRole()
	if err != nil {
		return UserStats{}, fmt.Errorf("count users by role: %w", err)
	}
	stats := UserStats{
		Free:    counts[domain.RoleFree],
		Premium: counts[domain.RolePremium],
		Admin:   counts[domain.RoleAdmin],
	}
	stats.Total = stats.Free + stats.Premium + stats.Admin
	return stats, nil
}

// AdminChatStats returns chat/message totals and the trailing 30-day chat
// creation series. The three store queries run concurrently.
func (a *App) AdminChatStats() (ChatStats, error) {
	var stats ChatStats
	since := a.now().UTC().AddDate(0, 0, -chatStatsWindow)
	var g errgroup.Group
	g.Go(func() error {
		n, err := a.store.ChatCount()
		stats.TotalChats = n
		return err
	})
	g.Go(func() error {
		n, err := a.store.MessageCount()
		stats.TotalMessages = n
		return err
	})
	g.Go(func() error {
		daily, err := a.store.ChatsCreatedPerDay(since)
		stats.Daily = daily
		return err
	})
	if err := g.Wait(); err != nil {
		return ChatStats{}, fmt.Errorf("chat stats: %w", err)
	}
	if stats.Daily == nil {
		stats.Daily = []domain.DailyChatCount{}
	}
	return stats, nil
}

// AdminModelStats returns assistant message counts per logical model.
func (a *App) AdminModelStats() ([]domain.ModelUsage, error) {
	usage, err := a.store.ModelUsage()
	if err != nil {
		return nil, fmt.Errorf("model usage: %w", err)
	}
	if usage == nil {
		usage = []domain.ModelUsage{}
	}
	return usage, nil
}

// AdminRevenue returns the mock revenue estimate.
func (a *App) AdminRevenue() (RevenueStats, error) {
	counts, err := a.store.UserCountsByRole()
	if err != nil {
		return RevenueStats{}, fmt.Errorf("count users by role: %w", err)
	}
	premium := counts[domain.RolePremium]
	monthly := roundCents(float64(premium) * a.premiumUnitPrice)
	stats := RevenueStats{
		PremiumUsers:   premium,
		MonthlyRevenue: monthly,
		Monthly:        make([]MonthlyRevenue, 0, revenueMonths),
	}
	// Synthetic back-series: ramps linearly up to the current estimate.
	now := a.now().UTC()
	for i := revenueMonths - 1; i >= 0; i-- {
		month := now.AddDate(0, -i, 0)
		fraction := float64(revenueMonths-i) / float64(revenueMonths)
		stats.Monthly = append(stats.Monthly, MonthlyRevenue{
			Month:   month.Format("2006-01"),
			Revenue: roundCents(monthly * fraction),
		})
	}
	return stats, nil
}

// AdminListUsers returns one page of users, newest first.
func (a *App) AdminListUsers(page, limit int) (UserPage, error) {
	if page <= 0 {
		page = defaultUserPage
	}
	if limit <= 0 || limit > 100 {
		limit = defaultUserLimit
	}
	total, err := a.store.UserCount()
	if err != nil {
		return UserPage{}, fmt.Errorf("count users: %w", err)
	}
	users, err := a.store.ListUsers((page-1)*limit, limit)
	if err != nil {
		return UserPage{}, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	totalPages := (total + limit - 1) / limit
	return UserPage{Users: users, Total: total, Page: page, Limit: limit, TotalPages: totalPages}, nil
}

// AdminUpdateUserRole changes a user's role and re-derives the
// subscription window: premium opens a fresh 30-day window, any other role
// clears it.
func (a *App) AdminUpdateUserRole(userID string, role domain.UserRole) (domain.User, error) {
	switch role {
	case domain.RoleFree, domain.RolePremium, domain.RoleAdmin:
	default:
		return domain.User{}, ErrInvalidRole
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	now := a.now().UTC()
	user.Role = role
	if role == domain.RolePremium {
		end := now.AddDate(0, 0, 30)
		user.SubscriptionStart = &now
		user.SubscriptionEnd = &end
	} else {
		user.SubscriptionStart = nil
		user.SubscriptionEnd = nil
	}
	user.UpdatedAt = now
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// AdminDeleteUser removes a user and everything they own.
func (a *App) AdminDeleteUser(userID string) error {
	_, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	if err := a.store.DeleteUser(userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
