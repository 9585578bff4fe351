package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/testhelpers"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

func TestIdentity_Resolve(t *testing.T) {
	f := newFixture(t)
	w := f.seedWorld(managerPhone, cleanerPhone)
	ctx := context.Background()

	managerUser, cleanerUser := uuid.New(), uuid.New()
	w.manager.UserID = &managerUser
	f.store.AddManager(w.manager)
	w.cleaner.UserID = &cleanerUser
	f.store.AddCleaner(w.cleaner)

	identity := NewIdentityService(&testhelpers.FakeIdentityProvider{Users: map[string]*models.AccountUser{
		"mgr":   {ID: managerUser},
		"cln":   {ID: cleanerUser},
		"stray": {ID: uuid.New()},
	}}, f.sessions, f.store.Managers(), f.store.Cleaners())

	actor, err := identity.Resolve(ctx, models.BearerCredential{Token: "mgr"})
	require.NoError(t, err)
	require.Equal(t, managerActor(w.manager), *actor)

	// An account linked to a cleaner row resolves to the cleaner.
	actor, err = identity.Resolve(ctx, models.BearerCredential{Token: "cln"})
	require.NoError(t, err)
	require.Equal(t, cleanerActor(w.cleaner), *actor)

	_, err = identity.Resolve(ctx, models.BearerCredential{Token: "stray"})
	require.ErrorIs(t, err, utils.ErrNoRole)

	_, err = identity.Resolve(ctx, models.BearerCredential{Token: "nope"})
	require.ErrorIs(t, err, utils.ErrUnauthenticated)

	token, _, err := f.sessions.Issue(w.cleaner.ID, cleanerPhone)
	require.NoError(t, err)
	actor, err = identity.Resolve(ctx, models.FieldSessionCredential{Token: token})
	require.NoError(t, err)
	require.Equal(t, cleanerActor(w.cleaner), *actor)

	_, err = identity.Resolve(ctx, models.FieldSessionCredential{Token: "garbage"})
	require.ErrorIs(t, err, utils.ErrUnauthenticated)

	_, err = identity.Resolve(ctx, models.NoCredential{})
	require.ErrorIs(t, err, utils.ErrUnauthenticated)
}

func TestIdentity_BearerWithoutProvider(t *testing.T) {
	f := newFixture(t)
	identity := NewIdentityService(nil, f.sessions, f.store.Managers(), f.store.Cleaners())

	_, err := identity.Resolve(context.Background(), models.BearerCredential{Token: "anything"})
	require.ErrorIs(t, err, utils.ErrUnauthenticated)
}
