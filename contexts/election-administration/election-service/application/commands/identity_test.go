package commands

import (
	"context"
	"errors"
	"testing"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
)

func TestUpsertIdentityDefaultsRoleAndStamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.identities.UpsertIdentity(ctx, UpsertIdentityCommand{
		Actor:    admin,
		Identity: entities.Identity{UserID: " stu-9 ", Email: "stu-9@campus.test", Institute: "IAS"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got.UserID != "stu-9" || got.Role != entities.RoleVoter {
		t.Fatalf("unexpected identity %+v", got)
	}
	if !got.UpdatedAt.Equal(f.clock.Now()) {
		t.Fatalf("expected updated_at from clock, got %s", got.UpdatedAt)
	}
	stored, err := f.store.GetIdentity(ctx, "stu-9")
	if err != nil || stored.Institute != "IAS" {
		t.Fatalf("expected stored identity, got %+v err=%v", stored, err)
	}
}

func TestUpsertIdentityValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name     string
		actor    entities.Actor
		identity entities.Identity
		want     error
	}{
		{"non admin", entities.Actor{UserID: "stu-1", Role: entities.RoleVoter}, entities.Identity{UserID: "stu-1"}, domainerrors.ErrForbidden},
		{"missing user", admin, entities.Identity{}, domainerrors.ErrInvalidInput},
		{"bad role", admin, entities.Identity{UserID: "stu-2", Role: "dean"}, domainerrors.ErrInvalidInput},
		{"unknown institute", admin, entities.Identity{UserID: "stu-3", Institute: "XYZ"}, domainerrors.ErrInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.identities.UpsertIdentity(context.Background(), UpsertIdentityCommand{Actor: tc.actor, Identity: tc.identity})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
