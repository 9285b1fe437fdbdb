package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

type AuthService struct {
	Repo          *repo.GormRepo
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Events        EventPublisher
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", ErrValidation)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	var user *models.User
	err = s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		taken, err := tx.UsernameTaken(ctx, username, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("username %q: %w", username, ErrConflict)
		}
		role, err := tx.EnsureRole(ctx, models.RoleUser)
		if err != nil {
			return err
		}
		u := models.User{Username: username, PasswordHash: pwHash, RoleID: role.ID}
		if err := tx.CreateUser(ctx, &u); err != nil {
			if repo.IsDuplicate(err) {
				return fmt.Errorf("username %q: %w", username, ErrConflict)
			}
			return err
		}
		u.Role = *role
		user = &u
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("user_registered", "user_id", user.ID)
	publish(ctx, s.Events, TopicUser, idKey(user.ID), Event{Type: "user.registered", UserID: user.ID})
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*tokens.Pair, *models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if strings.TrimSpace(username) == "" || password == "" {
		return nil, nil, fmt.Errorf("username and password are required: %w", ErrValidation)
	}

	user, err := s.Repo.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if repo.IsNotFound(err) {
			l.Warn("login_failed", "reason", "unknown username")
			return nil, nil, fmt.Errorf("invalid username or password: %w", ErrUnauthorized)
		}
		return nil, nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "wrong password", "user_id", user.ID)
		return nil, nil, fmt.Errorf("invalid username or password: %w", ErrUnauthorized)
	}

	pair, err := s.issue(ctx, s.Repo, user)
	if err != nil {
		return nil, nil, err
	}
	publish(ctx, s.Events, TopicUser, idKey(user.ID), Event{Type: "user.logged_in", UserID: user.ID})
	return pair, user, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued with the user's current role.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*tokens.Pair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", ErrUnauthorized)
	}
	userID, err := tokens.ParseUserID(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", ErrUnauthorized)
	}

	var pair *tokens.Pair
	err = s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		stored, err := tx.LockRefreshByJTI(ctx, claims.ID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("refresh token not found: %w", ErrUnauthorized)
			}
			return err
		}
		if stored.Revoked || stored.UserID != userID || stored.Token != tokens.Sha256Hex(refreshToken) ||
			stored.ExpiresAt < time.Now().Unix() {
			return fmt.Errorf("refresh token expired or revoked: %w", ErrUnauthorized)
		}
		if err := tx.RevokeRefresh(ctx, stored.JTI); err != nil {
			return err
		}

		user, err := tx.UserByID(ctx, userID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("user %d: %w", userID, ErrUnauthorized)
			}
			return err
		}
		pair, err = s.issue(ctx, tx, user)
		return err
	})
	if err != nil {
		l.Warn("refresh_failed", "user_id", userID, "error", err)
		return nil, err
	}
	return pair, nil
}

// Logout revokes the refresh token. Unknown or malformed tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil
	}
	if err := s.Repo.RevokeRefresh(ctx, claims.ID); err != nil {
		return err
	}
	if id, err := tokens.ParseUserID(claims.Subject); err == nil {
		publish(ctx, s.Events, TopicUser, idKey(id), Event{Type: "user.logged_out", UserID: id})
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, r *repo.GormRepo, user *models.User) (*tokens.Pair, error) {
	now := time.Now()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL)

	access, err := tokens.SignAccessToken(user.ID, user.Role.Name, accessExp, s.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	jti := tokens.NewJTI()
	refresh, err := tokens.SignRefreshToken(user.ID, jti, refreshExp, s.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	err = r.SaveRefresh(ctx, &models.RefreshToken{
		Token:     tokens.Sha256Hex(refresh),
		UserID:    user.ID,
		JTI:       jti,
		ExpiresAt: refreshExp.Unix(),
	})
	if err != nil {
		return nil, err
	}

	return &tokens.Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}
