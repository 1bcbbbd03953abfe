package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
	"github.com/Maarioo25/HiFybe/internal/repository/memory"
)

func strRef(s string) *string { return &s }

func seedProfileAccounts(t *testing.T) *memory.AccountRepository {
	t.Helper()
	accounts := memory.NewAccountRepository()
	for _, acc := range []*domain.Account{
		{ID: "ana", Name: "Ana", Nickname: strRef("ana1"), Email: "ana@x.com", PasswordHash: "hashed:secret1", RegisteredAt: baseTime},
		{ID: "bea", Name: "Bea", Nickname: strRef("bea1"), Email: "bea@x.com", PasswordHash: "hashed:secret1", RegisteredAt: baseTime},
	} {
		if err := accounts.Create(context.Background(), acc); err != nil {
			t.Fatalf("seed %s: %v", acc.ID, err)
		}
	}
	return accounts
}

func TestUpdateProfileAppliesPartialEdit(t *testing.T) {
	accounts := seedProfileAccounts(t)
	clock := newTestClock()
	clock.Advance(time.Hour)
	svc := NewProfileService(accounts, nil).WithClock(clock.Now)

	lat := 40.4
	updated, err := svc.UpdateProfile(context.Background(), "ana", ProfileInput{
		Surname:  strRef(" García "),
		Bio:      strRef("Indie y jazz"),
		Latitude: &lat,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Name != "Ana" || updated.Surname != "García" || updated.Bio != "Indie y jazz" {
		t.Fatalf("unexpected profile %+v", updated)
	}

	stored, err := accounts.FindByID(context.Background(), "ana")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Surname != "García" || stored.Latitude == nil || *stored.Latitude != lat {
		t.Fatalf("edit not persisted: %+v", stored)
	}
	if stored.Nickname == nil || *stored.Nickname != "ana1" {
		t.Fatalf("untouched nickname changed: %v", stored.Nickname)
	}
	if !stored.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected updated_at %s, got %s", clock.Now(), stored.UpdatedAt)
	}
	if stored.PasswordHash != "hashed:secret1" || stored.Email != "ana@x.com" {
		t.Fatalf("credentials must not change: %+v", stored)
	}
}

func TestUpdateProfileNicknameRules(t *testing.T) {
	accounts := seedProfileAccounts(t)
	svc := NewProfileService(accounts, nil)
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, "ana", ProfileInput{Nickname: strRef("BEA1")})
	var dup *DuplicateIdentityError
	if !errors.As(err, &dup) || dup.Field != "nickname" {
		t.Fatalf("expected nickname duplicate, got %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, "ana", ProfileInput{Nickname: strRef("ANA1")})
	if err != nil {
		t.Fatalf("recasing own nickname: %v", err)
	}
	if updated.Nickname == nil || *updated.Nickname != "ANA1" {
		t.Fatalf("unexpected nickname %v", updated.Nickname)
	}

	updated, err = svc.UpdateProfile(ctx, "ana", ProfileInput{Nickname: strRef("  ")})
	if err != nil {
		t.Fatalf("clearing nickname: %v", err)
	}
	if updated.Nickname != nil {
		t.Fatalf("expected nickname removed, got %q", *updated.Nickname)
	}
}

func TestUpdateProfileRejectsInvalidInput(t *testing.T) {
	svc := NewProfileService(seedProfileAccounts(t), nil)
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, "ana", ProfileInput{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty edit, got %v", err)
	}

	_, err = svc.UpdateProfile(ctx, "ana", ProfileInput{Name: strRef(" ")})
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) || invalid.Field != "name" {
		t.Fatalf("expected invalid name, got %v", err)
	}

	_, err = svc.UpdateProfile(ctx, "ghost", ProfileInput{Bio: strRef("x")})
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
