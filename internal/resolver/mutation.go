package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
	"github.com/nailerHeum/AjouNICE/internal/models"
	"github.com/nailerHeum/AjouNICE/internal/repository"
	"github.com/nailerHeum/AjouNICE/internal/service"
)

// PostInput carries the writable fields of a post. Nil fields are left unchanged on edit.
type PostInput struct {
	CategoryIdx *int64
	Title       *string
	Body        *string
}

func (r *Resolver) SendContactMail(ctx context.Context, name, email, content string) (bool, error) {
	msg, err := r.composer.Contact(name, email, content)
	r.enqueue("sendContactMail", msg, err)
	return true, nil
}

func (r *Resolver) SendRegisterAuthEmail(ctx context.Context, userNm, email, token string) (bool, error) {
	msg, err := r.composer.Confirm(userNm, email, token, false)
	r.enqueue("sendRegisterAuthEmail", msg, err)
	return true, nil
}

// LastLogin stamps the caller's last login address and time.
func (r *Resolver) LastLogin(ctx context.Context, ip string, p *repository.Projection) (*models.User, error) {
	identity, err := service.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	byIdx := repository.Eq("user_idx", identity.UserIdx)
	n, err := r.stores.Users.Update(ctx, map[string]any{
		"log_ip": ip,
		"log_dt": time.Now(),
	}, byIdx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	user, err := r.stores.Users.FindOne(ctx, repository.Query{Where: []repository.Predicate{byIdx}, Project: p})
	if err != nil {
		r.followUpFailed("lastLogin", "re-read", err)
		return nil, nil
	}
	return user, nil
}

// Authorize marks the address verified and consumes the token.
func (r *Resolver) Authorize(ctx context.Context, email, token string) (bool, error) {
	if email == "" || token == "" {
		return false, nil
	}
	n, err := r.stores.Users.Update(ctx, map[string]any{
		"auth_email_yn": models.Verified,
		"auth_token":    nil,
	}, repository.Eq("email", email), repository.Eq("auth_token", token))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResetEmailToken rotates the verification token, clears the verified flag
// and mails the new token.
func (r *Resolver) ResetEmailToken(ctx context.Context, email string) (bool, error) {
	token, err := r.auth.NewEmailToken(email)
	if err != nil {
		return false, err
	}

	n, err := r.stores.Users.Update(ctx, map[string]any{
		"auth_token":    token,
		"auth_email_yn": models.Unverified,
	}, repository.Eq("email", email))
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	msg, err := r.composer.Confirm("", email, token, true)
	r.enqueue("resetEmailToken", msg, err)
	return true, nil
}

// PostViewed increments the view counter atomically in the store.
func (r *Resolver) PostViewed(ctx context.Context, postIdx int64, p *repository.Projection) (*models.Post, error) {
	byIdx := repository.Eq("post_idx", postIdx)
	n, err := r.stores.Posts.Increment(ctx, "view_cnt", 1, byIdx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return r.rereadPost(ctx, "postViewed", postIdx, p, nil), nil
}

func (r *Resolver) AddCategory(ctx context.Context, name string, icon *string, p *repository.Projection) (*models.Category, error) {
	if _, err := service.RequireIdentity(ctx); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.ErrInvalidInput
	}

	category := &models.Category{CategoryNm: name, CategoryIcon: icon}
	if err := r.stores.Categories.Create(ctx, category); err != nil {
		return nil, err
	}

	stored, err := r.stores.Categories.FindOne(ctx, repository.Query{
		Where:   []repository.Predicate{repository.Eq("category_idx", category.CategoryIdx)},
		Project: p,
	})
	if err != nil || stored == nil {
		r.followUpFailed("addCategory", "re-read", err)
		return category, nil
	}
	return stored, nil
}

// WritePost creates a post authored by the caller.
func (r *Resolver) WritePost(ctx context.Context, in PostInput, p *repository.Projection) (*models.Post, error) {
	identity, err := service.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if in.CategoryIdx == nil || in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, apperrors.ErrInvalidInput
	}

	post := &models.Post{
		CategoryIdx: *in.CategoryIdx,
		UserIdx:     identity.UserIdx,
		Title:       *in.Title,
	}
	if in.Body != nil {
		post.Body = *in.Body
	}
	if err := r.stores.Posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return r.rereadPost(ctx, "writePost", post.PostIdx, p, post), nil
}

// EditPost changes the caller's own post.
func (r *Resolver) EditPost(ctx context.Context, postIdx int64, in PostInput, p *repository.Projection) (*models.Post, error) {
	identity, err := service.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any)
	if in.CategoryIdx != nil {
		values["category_idx"] = *in.CategoryIdx
	}
	if in.Title != nil {
		values["title"] = *in.Title
	}
	if in.Body != nil {
		values["body"] = *in.Body
	}
	if len(values) == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	n, err := r.stores.Posts.Update(ctx, values,
		repository.Eq("post_idx", postIdx),
		repository.Eq("user_idx", identity.UserIdx),
	)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return r.rereadPost(ctx, "editPost", postIdx, p, nil), nil
}

// RemovePost deletes the caller's own post. Its comments go with it through
// the store's cascading foreign key.
func (r *Resolver) RemovePost(ctx context.Context, postIdx int64) (bool, error) {
	identity, err := service.RequireIdentity(ctx)
	if err != nil {
		return false, err
	}
	n, err := r.stores.Posts.Delete(ctx,
		repository.Eq("post_idx", postIdx),
		repository.Eq("user_idx", identity.UserIdx),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Resolver) rereadPost(ctx context.Context, op string, postIdx int64, p *repository.Projection, fallback *models.Post) *models.Post {
	post, err := r.stores.Posts.FindOne(ctx, repository.Query{
		Where:   []repository.Predicate{repository.Eq("post_idx", postIdx)},
		Project: p,
		Include: postIncludes,
	})
	if err != nil {
		r.followUpFailed(op, "re-read", err)
		return fallback
	}
	if post == nil {
		return fallback
	}
	return post
}
