package resolver

import (
	"context"
	"time"

	"github.com/nailerHeum/AjouNICE/internal/repository"
	"github.com/nailerHeum/AjouNICE/internal/service"
	"github.com/nailerHeum/AjouNICE/internal/storage"
)

func (r *Resolver) UploadedBoardImage(ctx context.Context, file storage.Upload, categoryTitle string) (string, error) {
	if _, err := service.RequireIdentity(ctx); err != nil {
		return "", err
	}
	file.Folder = storage.BoardFolder(categoryTitle)
	return r.upload(ctx, file)
}

// UploadedProfileImage stores a profile image before the account exists,
// so it needs no identity.
func (r *Resolver) UploadedProfileImage(ctx context.Context, file storage.Upload) (string, error) {
	file.Folder = storage.FolderProfile
	return r.upload(ctx, file)
}

func (r *Resolver) UploadedCategoryIcon(ctx context.Context, file storage.Upload) (string, error) {
	if _, err := service.RequireIdentity(ctx); err != nil {
		return "", err
	}
	file.Folder = storage.FolderCategoryIcon
	return r.upload(ctx, file)
}

// ModifiedProfileImage uploads a new profile image and points the caller's
// user_profile at it. When that update fails the object is orphaned unless
// compensation is enabled.
func (r *Resolver) ModifiedProfileImage(ctx context.Context, file storage.Upload) (string, error) {
	identity, err := service.RequireIdentity(ctx)
	if err != nil {
		return "", err
	}

	file.Folder = storage.FolderProfile
	stored, err := r.uploads.Store(ctx, file)
	if err != nil {
		return "", err
	}

	n, err := r.stores.Users.Update(ctx, map[string]any{"user_profile": stored.Locator},
		repository.Eq("user_idx", identity.UserIdx))
	if err != nil || n == 0 {
		r.orphaned(stored.Key, err)
	}
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	return stored.Locator, nil
}

func (r *Resolver) upload(ctx context.Context, file storage.Upload) (string, error) {
	stored, err := r.uploads.Store(ctx, file)
	if err != nil {
		return "", err
	}
	return stored.Locator, nil
}

func (r *Resolver) orphaned(key string, cause error) {
	if !r.compensate {
		r.logger.Warn("uploaded object orphaned", "key", key, "error", cause)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.uploads.Remove(ctx, key); err != nil {
		r.logger.Error("failed to remove orphaned object", "key", key, "error", err)
		return
	}
	r.logger.Info("orphaned object removed", "key", key)
}
