package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/darx-site-generator/internal/domain/clients"
)

func SeedClient(tb testing.TB, ctx context.Context, tx *gorm.DB, slug string, status clients.Status) *clients.Client {
	tb.Helper()
	c := &clients.Client{
		Slug:         slug,
		Name:         "Acme Corp",
		ContactEmail: "ops@acme.example",
		WebsiteType:  "marketing",
		Tier:         string(clients.TierEntry),
		Status:       string(status),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed client: %v", err)
	}
	return c
}

func SeedOnboarding(tb testing.TB, ctx context.Context, tx *gorm.DB, slug string, publicSealed, privateSealed []byte) *clients.ClientOnboarding {
	tb.Helper()
	o := &clients.ClientOnboarding{
		ClientSlug:              slug,
		ClientName:              "Acme Corp",
		ContactEmail:            "ops@acme.example",
		WebsiteType:             "marketing",
		Tier:                    string(clients.TierProfessional),
		Status:                  string(clients.StatusPendingProvisioning),
		BuilderPublicKeySealed:  publicSealed,
		BuilderPrivateKeySealed: privateSealed,
	}
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		tb.Fatalf("seed onboarding: %v", err)
	}
	return o
}

func SeedToken(tb testing.TB, ctx context.Context, tx *gorm.DB, token, slug string, expiresAt time.Time, used bool) *clients.OnboardingToken {
	tb.Helper()
	t := &clients.OnboardingToken{
		Token:      token,
		ClientSlug: slug,
		ExpiresAt:  expiresAt,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed token: %v", err)
	}
	if used {
		if err := tx.WithContext(ctx).Model(t).Update("used", true).Error; err != nil {
			tb.Fatalf("mark token used: %v", err)
		}
		t.Used = true
	}
	return t
}
