package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func TestStorage_SignPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)
	turn := f.submittedTurn(w, &w.manager.ID)
	path := "turns/" + turn.ID.String() + "/a.jpg"

	signed, err := f.storage.SignPhoto(ctx, managerActor(w.manager), path)
	require.NoError(t, err)
	assert.Equal(t, path, signed.Path)
	assert.True(t, strings.HasPrefix(signed.URL, "https://storage.test/"))
	assert.Contains(t, signed.URL, "expires=600")
	assert.Equal(t, f.clock.Now().Add(f.cfg.PhotoURLTTL), signed.ExpiresAt)

	other := f.seedWorld("+14155550198", "+14155550102")
	_, err = f.storage.SignPhoto(ctx, managerActor(other.manager), path)
	require.ErrorIs(t, err, utils.ErrForbidden)
	_, err = f.storage.SignPhoto(ctx, managerActor(w.manager), "turns/"+turn.ID.String()+"/../../etc/passwd")
	require.ErrorIs(t, err, utils.ErrForbidden)
}

func TestStorage_SignPhotoStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.objects.Err = errors.New("gcs unavailable")
	w := f.seedWorld(managerPhone, cleanerPhone)
	turn := f.submittedTurn(w, &w.manager.ID)

	_, err := f.storage.SignPhoto(context.Background(), cleanerActor(w.cleaner), "turns/"+turn.ID.String()+"/a.jpg")
	require.ErrorIs(t, err, utils.ErrExternalServiceFailure)
}

func TestStorage_UploadPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)
	turn, err := f.turns.Start(ctx, cleanerActor(w.cleaner), StartTurnRequest{PropertyID: w.property.ID})
	require.NoError(t, err)

	path, err := f.storage.UploadPhoto(ctx, cleanerActor(w.cleaner), turn.ID, pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "turns/"+turn.ID.String()+"/"))
	assert.True(t, strings.HasSuffix(path, ".png"))
	assert.Equal(t, pngHeader, f.objects.Objects[path])

	// The uploaded path is accepted by submit.
	res, err := f.turns.Submit(ctx, cleanerActor(w.cleaner), turn.ID, []PhotoInput{{AreaKey: "bath", StoragePath: path}})
	require.NoError(t, err)
	assert.Equal(t, models.TurnStatusSubmitted, res.Turn.Status)
}

func TestStorage_UploadRejects(t *testing.T) {
	f := newFixture(t)
	f.cfg.MaxPhotoUploadBytes = 64
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)
	turn := f.submittedTurn(w, &w.manager.ID)
	actor := cleanerActor(w.cleaner)

	_, err := f.storage.UploadPhoto(ctx, actor, turn.ID, nil)
	require.ErrorIs(t, err, utils.ErrInvalidPayload)

	_, err = f.storage.UploadPhoto(ctx, actor, turn.ID, []byte("just some text"))
	require.ErrorIs(t, err, utils.ErrInvalidPayload)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 100)...)
	_, err = f.storage.UploadPhoto(ctx, actor, turn.ID, big)
	require.ErrorIs(t, err, utils.ErrInvalidPayload)

	stranger := f.store.AddCleaner(&models.Cleaner{DisplayName: "Stranger"})
	_, err = f.storage.UploadPhoto(ctx, cleanerActor(stranger), turn.ID, pngHeader)
	require.ErrorIs(t, err, utils.ErrForbidden)

	_, err = f.storage.UploadPhoto(ctx, actor, uuid.New(), pngHeader)
	require.ErrorIs(t, err, utils.ErrForbidden)
	assert.Empty(t, f.objects.Objects)
}
