package auth

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/angelmondragon/shopdesk-backend/internal/shops"
	"github.com/angelmondragon/shopdesk-backend/internal/users"
	pkgAuth "github.com/angelmondragon/shopdesk-backend/pkg/auth"
	"github.com/angelmondragon/shopdesk-backend/pkg/auth/session"
	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/security"
	"gorm.io/gorm"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "shopdesk", ExpirationMinutes: 30, RefreshTokenTTLMinutes: 60}

type fakeSession struct {
	token string
	owner session.Owner
}

type fakeSessions struct {
	tokens map[string]fakeSession
	seq    int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: map[string]fakeSession{}}
}

func (f *fakeSessions) Generate(_ context.Context, accessID string, owner session.Owner) (string, error) {
	f.seq++
	token := fmt.Sprintf("refresh-%d", f.seq)
	f.tokens[accessID] = fakeSession{token: token, owner: owner}
	return token, nil
}

func (f *fakeSessions) Rotate(ctx context.Context, oldAccessID, provided string) (session.Rotation, error) {
	stored, ok := f.tokens[oldAccessID]
	if !ok || stored.token != provided {
		return session.Rotation{}, session.ErrInvalidRefreshToken
	}
	delete(f.tokens, oldAccessID)
	accessID := session.NewAccessID()
	token, _ := f.Generate(ctx, accessID, stored.owner)
	return session.Rotation{AccessID: accessID, RefreshToken: token, Owner: stored.owner}, nil
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	delete(f.tokens, accessID)
	return nil
}

type authHarness struct {
	db       *gorm.DB
	svc      Service
	sessions *fakeSessions
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()
	conn := dbtest.Open(t)
	sessions := newFakeSessions()
	svc, err := NewService(ServiceParams{
		TxRunner:       db.Wrap(conn),
		UserRepo:       users.NewRepository(conn),
		ShopRepo:       shops.NewRepository(conn),
		SessionManager: sessions,
		JWTConfig:      testJWT,
		PasswordConfig: config.PasswordConfig{},
		Logger:         logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &authHarness{db: conn, svc: svc, sessions: sessions}
}

func (h *authHarness) staff(t *testing.T, shop *models.Shop, username, password string, role enums.ShopRole) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{Username: username, PasswordHash: hash, Role: role, ShopID: &shop.ID, IsActive: true}
	if err := h.db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestRegisterCreatesOwnerAndFreeShop(t *testing.T) {
	h := newAuthHarness(t)

	resp, err := h.svc.Register(context.Background(), RegisterRequest{Username: "ama", Password: "secret1", ShopName: "Chez Ama"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.Shop == nil || resp.Shop.Plan != enums.PlanFree || resp.Shop.Name != "Chez Ama" {
		t.Fatalf("unexpected shop %+v", resp.Shop)
	}
	if resp.User.Role != enums.ShopRoleAdmin || resp.User.ShopID == nil || *resp.User.ShopID != resp.Shop.ID {
		t.Fatalf("unexpected user %+v", resp.User)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.ShopID == nil || *claims.ShopID != resp.Shop.ID || claims.Role != enums.ShopRoleAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}

	var shop models.Shop
	if err := h.db.First(&shop, "id = ?", resp.Shop.ID).Error; err != nil || shop.OwnerID != resp.User.ID {
		t.Fatalf("expected persisted owned shop, got %+v, %v", shop, err)
	}

	_, err = h.svc.Register(context.Background(), RegisterRequest{Username: "ama", Password: "secret1", ShopName: "Other"})
	if pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginStaffRequiresMatchingShopName(t *testing.T) {
	h := newAuthHarness(t)
	owner, err := h.svc.Register(context.Background(), RegisterRequest{Username: "ama", Password: "secret1", ShopName: "Chez Ama"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	var shop models.Shop
	if err := h.db.First(&shop, "id = ?", owner.Shop.ID).Error; err != nil {
		t.Fatalf("load shop: %v", err)
	}
	h.staff(t, &shop, "kofi", "cashier1", enums.ShopRoleCashier)

	tests := []struct {
		name     string
		req      LoginRequest
		wantCode pkgerrors.Code
	}{
		{"admin without shop name", LoginRequest{Username: "ama", Password: "secret1"}, ""},
		{"staff without shop name", LoginRequest{Username: "kofi", Password: "cashier1"}, pkgerrors.CodeValidation},
		{"staff wrong shop", LoginRequest{Username: "kofi", Password: "cashier1", ShopName: "Elsewhere"}, pkgerrors.CodeUnauthorized},
		{"staff shop name case-insensitive", LoginRequest{Username: "kofi", Password: "cashier1", ShopName: " chez ama "}, ""},
		{"wrong password", LoginRequest{Username: "kofi", Password: "nope", ShopName: "Chez Ama"}, pkgerrors.CodeUnauthorized},
		{"unknown user", LoginRequest{Username: "ghost", Password: "x"}, pkgerrors.CodeUnauthorized},
	}
	for _, tc := range tests {
		resp, err := h.svc.Login(context.Background(), tc.req)
		if tc.wantCode == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			if resp.AccessToken == "" || resp.RefreshToken == "" {
				t.Fatalf("%s: expected tokens", tc.name)
			}
			continue
		}
		if got := pkgerrors.As(err).Code(); got != tc.wantCode {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.wantCode, err)
		}
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	h := newAuthHarness(t)
	first, err := h.svc.Register(context.Background(), RegisterRequest{Username: "ama", Password: "secret1", ShopName: "Chez Ama"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	second, err := h.svc.Refresh(context.Background(), first.AccessToken, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken || second.AccessToken == first.AccessToken {
		t.Fatalf("expected rotated tokens")
	}

	if _, err := h.svc.Refresh(context.Background(), first.AccessToken, first.RefreshToken); pkgerrors.As(err).Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected reused refresh token to fail, got %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, second.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := h.svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := h.sessions.tokens[claims.ID]; ok {
		t.Fatalf("expected session revoked")
	}
}

func TestSwitchShopRequiresOwnership(t *testing.T) {
	h := newAuthHarness(t)
	owner, err := h.svc.Register(context.Background(), RegisterRequest{Username: "ama", Password: "secret1", ShopName: "Chez Ama"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	branch := &models.Shop{Name: "Branch", OwnerID: owner.User.ID}
	if err := h.db.Create(branch).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}
	foreign, _ := dbtest.SeedShop(t, h.db, "Foreign", enums.PlanPro)

	claims, err := pkgAuth.ParseAccessToken(testJWT, owner.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if _, err := h.svc.SwitchShop(context.Background(), SwitchShopInput{UserID: owner.User.ID, ShopID: foreign.ID, AccessTokenID: claims.ID}); pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	resp, err := h.svc.SwitchShop(context.Background(), SwitchShopInput{UserID: owner.User.ID, ShopID: branch.ID, AccessTokenID: claims.ID})
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	next, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if next.ShopID == nil || *next.ShopID != branch.ID {
		t.Fatalf("expected token for branch, got %+v", next.ShopID)
	}
	if _, ok := h.sessions.tokens[claims.ID]; ok {
		t.Fatalf("old session must be revoked")
	}

	var stored models.User
	if err := h.db.First(&stored, "id = ?", owner.User.ID).Error; err != nil || stored.ShopID == nil || *stored.ShopID != branch.ID {
		t.Fatalf("expected user moved to branch, got %+v, %v", stored.ShopID, err)
	}
}

func TestLoginUpgradesWeakPasswordHash(t *testing.T) {
	h := newAuthHarness(t)
	if _, err := h.svc.Register(context.Background(), RegisterRequest{Username: "ama", Password: "secret1", ShopName: "Chez Ama"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	stronger := config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 2}
	svc, err := NewService(ServiceParams{
		TxRunner:       db.Wrap(h.db),
		UserRepo:       users.NewRepository(h.db),
		ShopRepo:       shops.NewRepository(h.db),
		SessionManager: h.sessions,
		JWTConfig:      testJWT,
		PasswordConfig: stronger,
		Logger:         logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Username: "ama", Password: "secret1"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	var stored models.User
	if err := h.db.First(&stored, "username = ?", "ama").Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if security.NeedsRehash(stored.PasswordHash, stronger) {
		t.Fatalf("expected hash to be upgraded, got %s", stored.PasswordHash)
	}
	if ok, _ := security.VerifyPassword("secret1", stored.PasswordHash); !ok {
		t.Fatalf("upgraded hash no longer verifies")
	}
}
