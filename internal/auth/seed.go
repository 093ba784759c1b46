package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// seedPasswordBytes is the number of random bytes for a generated password.
const seedPasswordBytes = 16

// SeedSuperUser creates an active super user on first boot if the user
// table is empty and email is set. The generated password is returned so the
// caller can show it once; it is never logged. An empty password means
// seeding was skipped.
func SeedSuperUser(ctx context.Context, users UserRepository, email string, logger *slog.Logger) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", nil
	}

	count, err := users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Info("users exist, skipping super user seed")
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil {
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	user, err := ProvisionUser(ctx, users, NewUser{
		Email:     email,
		Password:  password,
		FirstName: "Super",
		LastName:  "User",
	}, AllPermissions())
	if err != nil {
		return "", fmt.Errorf("creating seed super user: %w", err)
	}

	logger.Warn("seed super user created",
		"user_id", user.ID,
		"email", user.Email,
		"action_required", "change the generated password immediately",
	)
	return password, nil
}

// ProvisionUser creates an active account holding perms. It backs the
// operator CLI and seeding; self-service signup goes through
// LoginService.Signup instead.
func ProvisionUser(ctx context.Context, users UserRepository, req NewUser, perms []PermissionKey) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for _, p := range perms {
		if !IsValidPermission(p) {
			return nil, BadRequest(fmt.Sprintf("unknown permission %q", p), nil)
		}
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Email:        req.Email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		Status:       true,
		Permissions:  append([]PermissionKey(nil), perms...),
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
