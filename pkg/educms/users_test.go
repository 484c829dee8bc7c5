package educms_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/edu-cms/pkg/educms"
)

func TestCreateUser(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	user, err := f.svc.CreateUser(ctx, educms.CreateUserRequest{Username: " nima ", Phone: "0912000", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "nima", user.Username)
	assert.Equal(t, educms.RoleUser, user.Role)
	assert.NotEqual(t, "pw", user.PasswordHash)

	tests := []struct {
		name string
		req  educms.CreateUserRequest
		err  error
	}{
		{"duplicate username", educms.CreateUserRequest{Username: "nima", Phone: "1", Password: "pw"}, educms.ErrUserExists},
		{"duplicate phone", educms.CreateUserRequest{Username: "other", Phone: "0912000", Password: "pw"}, educms.ErrUserExists},
		{"missing password", educms.CreateUserRequest{Username: "x", Phone: "2"}, educms.ErrMissingField},
		{"bad role", educms.CreateUserRequest{Username: "x", Phone: "2", Password: "pw", Role: "root"}, educms.ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateUser(ctx, tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	admin, err := f.svc.CreateUser(ctx, educms.CreateUserRequest{Username: "root", Phone: "1", Password: "s3cret", Role: educms.RoleAdmin})
	require.NoError(t, err)

	got, err := f.svc.Authenticate(ctx, "root", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)
	assert.Equal(t, educms.RoleAdmin, got.Role)

	_, err = f.svc.Authenticate(ctx, "root", "wrong")
	assert.ErrorIs(t, err, educms.ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, educms.ErrInvalidCredentials)
}

func TestCategories(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	assert.Equal(t, "mental-health", f.category.Slug)

	_, err := f.svc.CreateCategory(ctx, "mental health")
	assert.ErrorIs(t, err, educms.ErrCategoryExists)

	_, err = f.svc.CreateCategory(ctx, "   ")
	assert.ErrorIs(t, err, educms.ErrMissingField)

	family, err := f.svc.CreateCategory(ctx, "Family & Parenting")
	require.NoError(t, err)
	assert.Equal(t, "family-and-parenting", family.Slug)

	categories, err := f.svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	t.Run("delete does not cascade", func(t *testing.T) {
		item := f.item(t, educms.KindArticle, "orphan")
		require.NoError(t, f.svc.DeleteCategory(ctx, f.category.ID))

		got, err := f.svc.GetItem(ctx, educms.KindArticle, item.ID)
		require.NoError(t, err)
		assert.Equal(t, f.category.ID, got.CategoryID)

		_, err = f.svc.GetCategory(ctx, f.category.ID)
		assert.ErrorIs(t, err, educms.ErrNotFound)

		assert.ErrorIs(t, f.svc.DeleteCategory(ctx, uuid.New()), educms.ErrNotFound)
	})
}

func TestSiteConfig(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	_, err := f.svc.GetSiteConfig(ctx, educms.SiteConfigHome)
	assert.ErrorIs(t, err, educms.ErrNotFound)

	home := json.RawMessage(`{"hero":{"title":"Welcome"}}`)
	saved, err := f.svc.SaveSiteConfig(ctx, educms.SiteConfigHome, home)
	require.NoError(t, err)
	assert.Equal(t, educms.SiteConfigHome, saved.Key)

	got, err := f.svc.GetSiteConfig(ctx, educms.SiteConfigHome)
	require.NoError(t, err)
	assert.JSONEq(t, string(home), string(got.Document))

	_, err = f.svc.SaveSiteConfig(ctx, "sidebar", home)
	assert.ErrorIs(t, err, educms.ErrInvalidField)

	_, err = f.svc.SaveSiteConfig(ctx, educms.SiteConfigFooter, json.RawMessage(`{"broken"`))
	assert.ErrorIs(t, err, educms.ErrInvalidField)
}
