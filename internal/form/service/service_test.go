package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fooforms/fooforms/backend/go-services/internal/form"
	"github.com/fooforms/fooforms/backend/go-services/internal/form/repository"
	"github.com/fooforms/fooforms/backend/go-services/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeIcons struct {
	objects map[string][]byte
	removed []string
	err     error
}

func (f *fakeIcons) PutIcon(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = b
	return nil
}

func (f *fakeIcons) RemoveIcon(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeIcons) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://icons.example/" + key + "?expires=" + expires.String(), nil
}

// failingUpdates accepts inserts but rejects every update.
type failingUpdates struct {
	form.Store
}

func (failingUpdates) Update(ctx context.Context, f *form.Form) error {
	return errors.New("primary stepped down")
}

func newTestService(icons IconStore) Service {
	return New(form.NewModel(repository.NewMemoryRepo()), icons)
}

func TestCreateGetUpdateDelete(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	okBefore := testutil.ToFloat64(metrics.FormSaves.WithLabelValues("insert", "ok"))
	f, err := svc.Create(ctx, map[string]interface{}{"displayName": "signup", "title": "Sign up"})
	require.NoError(t, err)
	require.Equal(t, 1, f.Version)
	require.Equal(t, okBefore+1, testutil.ToFloat64(metrics.FormSaves.WithLabelValues("insert", "ok")))

	got, err := svc.Get(ctx, f.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, "Sign up", *got.Title)

	updated, err := svc.Update(ctx, f.ID.Hex(), map[string]interface{}{"btnLabel": "Go"})
	require.NoError(t, err)
	require.Equal(t, 2, updated.Version)
	require.Equal(t, "Sign up", *updated.Title)
	require.Equal(t, "Go", *updated.BtnLabel)
	require.Equal(t, f.URL, updated.URL)
	require.True(t, f.Created.Equal(updated.Created))

	require.NoError(t, svc.Delete(ctx, f.ID.Hex()))
	_, err = svc.Get(ctx, f.ID.Hex())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRejectsMissingDisplayName(t *testing.T) {
	svc := newTestService(nil)
	invalidBefore := testutil.ToFloat64(metrics.FormSaves.WithLabelValues("insert", "invalid"))

	f, err := svc.Create(context.Background(), map[string]interface{}{"title": "no name"})
	require.Nil(t, f)
	var verr *form.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Errors, "displayName")
	require.Equal(t, invalidBefore+1, testutil.ToFloat64(metrics.FormSaves.WithLabelValues("insert", "invalid")))

	list, err := svc.List(context.Background(), "", 0)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestUpdateValidationKeepsStoredVersion(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	f, err := svc.Create(ctx, map[string]interface{}{"displayName": "x"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, f.ID.Hex(), map[string]interface{}{"displayName": ""})
	require.True(t, form.IsValidation(err))

	got, err := svc.Get(ctx, f.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, 1, got.Version)
	require.Equal(t, "x", got.DisplayName)
}

func TestInvalidIDs(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	_, err := svc.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrInvalidID)
	_, err = svc.Update(ctx, "nope", nil)
	require.ErrorIs(t, err, ErrInvalidID)
	require.ErrorIs(t, svc.Delete(ctx, "nope"), ErrInvalidID)
	_, err = svc.List(ctx, "nope", 0)
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestListByStream(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	stream := primitive.NewObjectID()

	_, err := svc.Create(ctx, map[string]interface{}{"displayName": "a", "postStream": stream.Hex()})
	require.NoError(t, err)
	_, err = svc.Create(ctx, map[string]interface{}{"displayName": "b"})
	require.NoError(t, err)

	list, err := svc.List(ctx, stream.Hex(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a", list[0].DisplayName)
}

func TestSetIcon(t *testing.T) {
	icons := &fakeIcons{}
	svc := newTestService(icons)
	ctx := context.Background()
	f, err := svc.Create(ctx, map[string]interface{}{"displayName": "x"})
	require.NoError(t, err)

	body := []byte("\x89PNG fake")
	saved, err := svc.SetIcon(ctx, f.ID.Hex(), Icon{Filename: "Logo.PNG", ContentType: "image/png", Size: int64(len(body)), Body: bytes.NewReader(body)})
	require.NoError(t, err)
	wantKey := "icons/" + f.ID.Hex() + ".png"
	require.Equal(t, wantKey, *saved.Icon)
	require.Equal(t, 2, saved.Version)
	require.Equal(t, body, icons.objects[wantKey])

	_, err = svc.SetIcon(ctx, f.ID.Hex(), Icon{Size: MaxIconSize + 1, Body: bytes.NewReader(nil)})
	require.ErrorIs(t, err, ErrIconTooLarge)

	icons.err = errors.New("bucket gone")
	_, err = svc.SetIcon(ctx, f.ID.Hex(), Icon{Filename: "a.png", Body: bytes.NewReader(body), Size: 1})
	require.Error(t, err)
	got, err := svc.Get(ctx, f.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, 2, got.Version)
}

func TestSetIconWithoutStore(t *testing.T) {
	svc := newTestService(nil)
	_, err := svc.SetIcon(context.Background(), primitive.NewObjectID().Hex(), Icon{})
	require.ErrorIs(t, err, ErrNoIconStore)
}

func TestSetIconRemovesUploadWhenSaveFails(t *testing.T) {
	icons := &fakeIcons{}
	svc := New(form.NewModel(failingUpdates{repository.NewMemoryRepo()}), icons)
	ctx := context.Background()
	f, err := svc.Create(ctx, map[string]interface{}{"displayName": "x"})
	require.NoError(t, err)

	body := []byte("png")
	_, err = svc.SetIcon(ctx, f.ID.Hex(), Icon{Filename: "a.png", Size: 3, Body: bytes.NewReader(body)})
	var perr *form.PersistenceError
	require.ErrorAs(t, err, &perr)
	key := "icons/" + f.ID.Hex() + ".png"
	require.Equal(t, []string{key}, icons.removed)
	require.NotContains(t, icons.objects, key)
}

func TestSetIconKeepsReferencedKeyWhenSaveFails(t *testing.T) {
	icons := &fakeIcons{}
	repo := repository.NewMemoryRepo()
	ctx := context.Background()
	f, err := New(form.NewModel(repo), icons).Create(ctx, map[string]interface{}{"displayName": "x"})
	require.NoError(t, err)
	key := "icons/" + f.ID.Hex() + ".png"
	f.Icon = &key
	require.NoError(t, repo.Update(ctx, f))

	svc := New(form.NewModel(failingUpdates{repo}), icons)
	_, err = svc.SetIcon(ctx, f.ID.Hex(), Icon{Filename: "b.png", Size: 1, Body: bytes.NewReader([]byte("x"))})
	require.Error(t, err)
	require.Empty(t, icons.removed)
}

func TestIconURL(t *testing.T) {
	icons := &fakeIcons{}
	svc := newTestService(icons)
	ctx := context.Background()
	f, err := svc.Create(ctx, map[string]interface{}{"displayName": "x"})
	require.NoError(t, err)

	_, err = svc.IconURL(ctx, f.ID.Hex())
	require.ErrorIs(t, err, ErrNoIcon)

	_, err = svc.SetIcon(ctx, f.ID.Hex(), Icon{Filename: "logo.svg", Size: 1, Body: bytes.NewReader([]byte("<"))})
	require.NoError(t, err)
	u, err := svc.IconURL(ctx, f.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, "https://icons.example/icons/"+f.ID.Hex()+".svg?expires="+IconURLExpiry.String(), u)

	_, err = svc.Update(ctx, f.ID.Hex(), map[string]interface{}{"icon": "https://cdn.example/logo.png"})
	require.NoError(t, err)
	u, err = svc.IconURL(ctx, f.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/logo.png", u)

	_, err = newTestService(nil).IconURL(ctx, f.ID.Hex())
	require.ErrorIs(t, err, ErrNoIconStore)
}
