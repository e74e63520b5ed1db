package app

import (
	"fmt"
	"strings"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/domain"
	"chatrelay/pkg/store"
)

// GoogleProfile is the subset of the federated userinfo payload acted on.
// Raw holds the full decoded payload for storage.
type GoogleProfile struct {
	Subject string
	Email   string
	Name    string
	Raw     map[string]any
}

// SignUp registers a new local account and issues a session token.
func (a *App) SignUp(name, email, password string) (domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	if name == "" {
		return domain.User{}, "", ErrNameRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user, err := a.createUser(name, email, passwordHash, domain.ProviderLocal, nil)
	if err != nil {
		return domain.User{}, "", err
	}
	return a.issueSession(user)
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		// Federated account; no password to check.
		return domain.User{}, "", ErrPasswordNotSet
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	return a.issueSession(user)
}

// LoginWithGoogle finds or creates the account bound to a federated
// profile and issues a session token.
func (a *App) LoginWithGoogle(profile GoogleProfile) (domain.User, string, error) {
	email := normalizeEmail(profile.Email)
	if email == "" {
		return domain.User{}, "", fmt.Errorf("federated profile has no email")
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		name := strings.TrimSpace(profile.Name)
		if name == "" {
			name = email
		}
		user, err = a.createUser(name, email, "", domain.ProviderGoogle, profile.Raw)
		if err != nil {
			return domain.User{}, "", err
		}
	} else if user.Provider == domain.ProviderGoogle && profile.Raw != nil {
		user.ProviderProfile = profile.Raw
		user.UpdatedAt = a.now().UTC()
		if err := a.store.SaveUser(user); err != nil {
			return domain.User{}, "", fmt.Errorf("update user: %w", err)
		}
	}
	return a.issueSession(user)
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// Logout invalidates the session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UpdateProfile changes the user's display name and, optionally, their
// password after verifying the current one.
func (a *App) UpdateProfile(user domain.User, name, currentPassword, newPassword string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name != "" {
		user.Name = name
	}
	if newPassword != "" {
		if user.PasswordHash != "" {
			if currentPassword == "" || !auth.CheckPassword(currentPassword, user.PasswordHash) {
				return domain.User{}, ErrInvalidCredentials
			}
		}
		if err := auth.ValidatePassword(newPassword); err != nil {
			return domain.User{}, err
		}
		hash, err := auth.HashPassword(newPassword)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = a.now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeleteAccount removes the user and everything they own. Local accounts
// must re-confirm their password; federated accounts pass an empty one.
func (a *App) DeleteAccount(user domain.User, password string) error {
	if user.PasswordHash != "" && !auth.CheckPassword(password, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := a.store.DeleteUser(user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// IsPremium reports whether the user has an active subscription window.
func (a *App) IsPremium(user domain.User) bool {
	return domain.IsPremium(user.Role, user.SubscriptionEnd, a.now())
}

func (a *App) issueSession(user domain.User) (domain.User, string, error) {
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session token: %w", err)
	}
	return user, token, nil
}

func (a *App) createUser(name, email, passwordHash string, provider domain.Provider, profile map[string]any) (domain.User, error) {
	now := a.now().UTC()
	user := domain.User{
		ID:              store.NewID(),
		Name:            name,
		Email:           email,
		PasswordHash:    passwordHash,
		Provider:        provider,
		Role:            domain.RoleFree,
		ProviderProfile: profile,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
