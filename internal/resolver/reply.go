package resolver

import (
	"context"
	"strings"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
	"github.com/nailerHeum/AjouNICE/internal/models"
	"github.com/nailerHeum/AjouNICE/internal/repository"
	"github.com/nailerHeum/AjouNICE/internal/service"
)

// WriteReply adds the caller's comment to a post and announces it on
// REPLY_WRITTEN.
func (r *Resolver) WriteReply(ctx context.Context, postIdx int64, text string) (*models.Comment, error) {
	identity, err := service.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.ErrInvalidInput
	}

	created := &models.Comment{PostIdx: postIdx, UserIdx: identity.UserIdx, Text: text}
	if err := r.stores.Comments.Create(ctx, created); err != nil {
		return nil, err
	}

	full := r.rereadComment(ctx, "writeReply", created.CmtIdx)
	if full == nil {
		return created, nil
	}
	r.publish("writeReply", TopicReplyWritten, full)
	return full, nil
}

// EditReply replaces the text of the caller's own comment and announces it
// on REPLY_MODIFIED.
func (r *Resolver) EditReply(ctx context.Context, cmtIdx int64, text string) (*models.Comment, error) {
	identity, err := service.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.ErrInvalidInput
	}

	n, err := r.stores.Comments.Update(ctx, map[string]any{"text": text},
		repository.Eq("cmt_idx", cmtIdx),
		repository.Eq("user_idx", identity.UserIdx),
	)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	full := r.rereadComment(ctx, "editReply", cmtIdx)
	if full == nil {
		return &models.Comment{CmtIdx: cmtIdx, UserIdx: identity.UserIdx, Text: text}, nil
	}
	r.publish("editReply", TopicReplyModified, full)
	return full, nil
}

// RemoveReply deletes the caller's own comment and announces the removed
// record on REPLY_REMOVED.
func (r *Resolver) RemoveReply(ctx context.Context, cmtIdx int64) (*models.Comment, error) {
	identity, err := service.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	owned := []repository.Predicate{
		repository.Eq("cmt_idx", cmtIdx),
		repository.Eq("user_idx", identity.UserIdx),
	}
	target, err := r.stores.Comments.FindOne(ctx, repository.Query{Where: owned, Include: commentIncludes})
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, nil
	}

	n, err := r.stores.Comments.Delete(ctx, owned...)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	r.publish("removeReply", TopicReplyRemoved, target)
	return target, nil
}

// rereadComment loads the complete comment, commenter included, for the
// event payload. It returns nil when the read fails.
func (r *Resolver) rereadComment(ctx context.Context, op string, cmtIdx int64) *models.Comment {
	full, err := r.stores.Comments.FindOne(ctx, repository.Query{
		Where:   []repository.Predicate{repository.Eq("cmt_idx", cmtIdx)},
		Include: commentIncludes,
	})
	if err != nil {
		r.followUpFailed(op, "re-read", err)
		return nil
	}
	if full == nil {
		r.followUpFailed(op, "re-read", errCommentVanished)
	}
	return full
}
