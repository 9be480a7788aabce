package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/angelmondragon/shopdesk-backend/internal/plans"
	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
)

type stubTierLoader struct {
	tier  enums.PlanTier
	err   error
	calls int
}

func (s *stubTierLoader) ShopTier(context.Context, uuid.UUID) (enums.PlanTier, error) {
	s.calls++
	return s.tier, s.err
}

func gatedRequest(shopID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/finance/dashboard", nil)
	if shopID != "" {
		req = req.WithContext(WithShopID(req.Context(), shopID))
	}
	return req
}

func TestRequireCapabilityRendersUpgradePrompt(t *testing.T) {
	loader := &stubTierLoader{tier: enums.PlanFree}
	chain := ShopTier(loader, nil)(RequireCapability(plans.CapabilityAdvancedAccounting, nil)(http.HandlerFunc(okHandler)))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, gatedRequest(uuid.NewString()))

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	var body struct {
		Upgrade struct {
			Capability   string `json:"capability"`
			CurrentTier  string `json:"current_tier"`
			RequiredTier string `json:"required_tier"`
			Message      string `json:"message"`
		} `json:"upgrade"`
		Error any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Nil(t, body.Error, "upgrade prompts are not error envelopes")
	require.Equal(t, "advanced_accounting", body.Upgrade.Capability)
	require.Equal(t, "free", body.Upgrade.CurrentTier)
	require.Equal(t, "medium", body.Upgrade.RequiredTier)
	require.NotEmpty(t, body.Upgrade.Message)
	require.Equal(t, 1, loader.calls)
}

func TestRequireCapabilityAllowsHigherTiers(t *testing.T) {
	for _, tier := range []enums.PlanTier{enums.PlanMedium, enums.PlanPro, enums.PlanProPlus} {
		loader := &stubTierLoader{tier: tier}
		chain := ShopTier(loader, nil)(RequireCapability(plans.CapabilityAdvancedAccounting, nil)(http.HandlerFunc(okHandler)))
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, gatedRequest(uuid.NewString()))
		require.Equalf(t, http.StatusOK, rec.Code, "tier %s", tier)
	}
}

func TestShopTierRequiresShopContext(t *testing.T) {
	loader := &stubTierLoader{tier: enums.PlanPro}
	rec := httptest.NewRecorder()
	ShopTier(loader, nil)(http.HandlerFunc(okHandler)).ServeHTTP(rec, gatedRequest(""))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, loader.calls)
}

func TestShopTierMapsLoaderFailures(t *testing.T) {
	missing := &stubTierLoader{err: pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")}
	rec := httptest.NewRecorder()
	ShopTier(missing, nil)(http.HandlerFunc(okHandler)).ServeHTTP(rec, gatedRequest(uuid.NewString()))
	require.Equal(t, http.StatusForbidden, rec.Code)

	broken := &stubTierLoader{err: errors.New("connection reset")}
	rec = httptest.NewRecorder()
	ShopTier(broken, nil)(http.HandlerFunc(okHandler)).ServeHTTP(rec, gatedRequest(uuid.NewString()))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	mw := RequireRoles(nil, enums.ShopRoleAdmin, enums.ShopRoleManager, enums.ShopRoleAccountant)
	cases := map[enums.ShopRole]int{
		enums.ShopRoleAdmin:      http.StatusOK,
		enums.ShopRoleAccountant: http.StatusOK,
		enums.ShopRoleCashier:    http.StatusForbidden,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		mw(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
		require.Equalf(t, want, rec.Code, "role %s", role)
	}
}

func TestRequireSuperuser(t *testing.T) {
	mw := RequireSuperuser(nil)
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPatch, "/", nil)
	req = req.WithContext(WithSuperuser(req.Context(), true))
	rec = httptest.NewRecorder()
	mw(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitPerUser(t *testing.T) {
	rate, err := limiter.NewRateFromFormatted("2-M")
	require.NoError(t, err)
	l := limiter.New(memory.NewStore(), rate)
	handler := RateLimit(l, nil)(http.HandlerFunc(okHandler))

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("alice").Code)
	second := send("alice")
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, http.StatusTooManyRequests, send("alice").Code)
	require.Equal(t, http.StatusOK, send("bob").Code, "limits are per caller")
}

func TestNewAPILimiterRejectsBadRate(t *testing.T) {
	_, err := NewAPILimiter(config.APIRateLimitConfig{Rate: "lots"}, nil)
	require.Error(t, err)

	l, err := NewAPILimiter(config.APIRateLimitConfig{Rate: "10-S"}, nil)
	require.NoError(t, err)
	require.EqualValues(t, 10, l.Rate.Limit)
}
