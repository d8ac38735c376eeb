package resolver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
	"github.com/nailerHeum/AjouNICE/internal/models"
	"github.com/nailerHeum/AjouNICE/internal/repository"
	"github.com/nailerHeum/AjouNICE/internal/service"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var (
	newestFirst = []repository.Order{repository.Desc("reg_dt"), repository.Desc("post_idx")}

	commentsNewestFirst = repository.Include{
		Relation: "comments",
		Order:    []repository.Order{repository.Desc("reg_dt"), repository.Desc("cmt_idx")},
		Include:  []repository.Include{{Relation: "commenter"}},
	}

	userIncludes = []repository.Include{
		{Relation: "articles", Order: newestFirst},
		{Relation: "comments", Order: []repository.Order{repository.Desc("reg_dt")}},
	}
	postIncludes = []repository.Include{
		{Relation: "category"},
		{Relation: "user"},
		commentsNewestFirst,
	}
	commentIncludes = []repository.Include{{Relation: "commenter"}}
)

// UserFilter selects a user by index or login name.
type UserFilter struct {
	UserIdx *int64
	UserID  *string
}

// PostConnection is one page of posts.
type PostConnection struct {
	TotalCount int64         `json:"totalCount"`
	Edges      []models.Post `json:"edges"`
}

func (r *Resolver) Colleges(ctx context.Context, p *repository.Projection) ([]models.College, error) {
	return r.stores.Colleges.FindAll(ctx, repository.Query{
		Project: p,
		Include: []repository.Include{{Relation: "departments", Order: []repository.Order{repository.Asc("dpt_idx")}}},
		Order:   []repository.Order{repository.Asc("college_idx")},
	})
}

func (r *Resolver) Department(ctx context.Context, dptIdx int64, p *repository.Projection) (*models.Department, error) {
	return r.stores.Departments.FindOne(ctx, repository.Query{
		Where:   []repository.Predicate{repository.Eq("dpt_idx", dptIdx)},
		Project: p,
	})
}

// Departments lists departments, optionally only those of one college.
func (r *Resolver) Departments(ctx context.Context, collegeIdx *int64, p *repository.Projection) ([]models.Department, error) {
	q := repository.Query{Project: p, Order: []repository.Order{repository.Asc("dpt_idx")}}
	if collegeIdx != nil {
		q.Where = []repository.Predicate{repository.Eq("college_idx", *collegeIdx)}
	}
	return r.stores.Departments.FindAll(ctx, q)
}

func (r *Resolver) User(ctx context.Context, f UserFilter, p *repository.Projection) (*models.User, error) {
	var where []repository.Predicate
	if f.UserIdx != nil {
		where = append(where, repository.Eq("user_idx", *f.UserIdx))
	}
	if f.UserID != nil {
		where = append(where, repository.Eq("user_id", *f.UserID))
	}
	if len(where) == 0 {
		return nil, apperrors.ErrInvalidInput
	}
	return r.stores.Users.FindOne(ctx, repository.Query{Where: where, Project: p, Include: userIncludes})
}

// Users lists every member. Only signed-in callers may list members.
func (r *Resolver) Users(ctx context.Context, p *repository.Projection) ([]models.User, error) {
	if _, err := service.RequireIdentity(ctx); err != nil {
		return nil, err
	}
	return r.stores.Users.FindAll(ctx, repository.Query{
		Project: p,
		Include: userIncludes,
		Order:   []repository.Order{repository.Asc("user_idx")},
	})
}

// Boards lists categories with their posts, newest first.
func (r *Resolver) Boards(ctx context.Context, p *repository.Projection) ([]models.Category, error) {
	return r.stores.Categories.FindAll(ctx, repository.Query{
		Project: p,
		Include: []repository.Include{{Relation: "posts", Order: newestFirst}},
		Order:   []repository.Order{repository.Asc("category_idx")},
	})
}

func (r *Resolver) Posts(ctx context.Context, categoryIdx *int64, p *repository.Projection) ([]models.Post, error) {
	q := repository.Query{
		Project: p,
		Include: postIncludes,
		Order:   newestFirst,
	}
	if categoryIdx != nil {
		q.Where = []repository.Predicate{repository.Eq("category_idx", *categoryIdx)}
	}
	return r.stores.Posts.FindAll(ctx, q)
}

// PaginatedPosts returns one page of posts, newest first, and the total
// number of posts matching the filter.
func (r *Resolver) PaginatedPosts(ctx context.Context, categoryIdx *int64, limit, offset int, p *repository.Projection) (*PostConnection, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var where []repository.Predicate
	if categoryIdx != nil {
		where = append(where, repository.Eq("category_idx", *categoryIdx))
	}

	total, err := r.stores.Posts.Count(ctx, where...)
	if err != nil {
		return nil, err
	}
	edges, err := r.stores.Posts.FindAll(ctx, repository.Query{
		Where:   where,
		Project: p,
		Include: postIncludes,
		Order:   newestFirst,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, err
	}
	return &PostConnection{TotalCount: total, Edges: edges}, nil
}

// Post returns one post with its category, author and comments newest first.
func (r *Resolver) Post(ctx context.Context, postIdx int64, p *repository.Projection) (*models.Post, error) {
	return r.stores.Posts.FindOne(ctx, repository.Query{
		Where:   []repository.Predicate{repository.Eq("post_idx", postIdx)},
		Project: p,
		Include: postIncludes,
	})
}

// PostsByKeyword matches keyword against title or body.
func (r *Resolver) PostsByKeyword(ctx context.Context, keyword string, p *repository.Projection) ([]models.Post, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []models.Post{}, nil
	}
	return r.stores.Posts.FindAll(ctx, repository.Query{
		Where: []repository.Predicate{repository.Or(
			repository.Contains("title", keyword),
			repository.Contains("body", keyword),
		)},
		Project: p,
		Include: postIncludes,
		Order:   newestFirst,
	})
}

func (r *Resolver) Comment(ctx context.Context, cmtIdx int64, p *repository.Projection) (*models.Comment, error) {
	return r.stores.Comments.FindOne(ctx, repository.Query{
		Where:   []repository.Predicate{repository.Eq("cmt_idx", cmtIdx)},
		Project: p,
		Include: commentIncludes,
	})
}

func (r *Resolver) Schedule(ctx context.Context) (json.RawMessage, error) {
	return r.lookup.Schedule(ctx)
}

func (r *Resolver) Notice(ctx context.Context, code string) (json.RawMessage, error) {
	return r.lookup.Notice(ctx, code)
}

func (r *Resolver) DoesIDExist(ctx context.Context, userID string) (bool, error) {
	return r.exists(ctx, repository.Eq("user_id", userID))
}

func (r *Resolver) DoesEmailExist(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, repository.Eq("email", email))
}

func (r *Resolver) DoesNickExist(ctx context.Context, nick string) (bool, error) {
	return r.exists(ctx, repository.Eq("nick_nm", nick))
}

func (r *Resolver) exists(ctx context.Context, pred repository.Predicate) (bool, error) {
	n, err := r.stores.Users.Count(ctx, pred)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CheckTokenValid returns the user holding the given unconsumed token, or nil.
func (r *Resolver) CheckTokenValid(ctx context.Context, email, token string, p *repository.Projection) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	return r.stores.Users.FindOne(ctx, repository.Query{
		Where: []repository.Predicate{
			repository.Eq("email", email),
			repository.Eq("auth_token", token),
		},
		Project: p,
	})
}
