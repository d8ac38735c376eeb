package graph

import (
	"context"

	"github.com/nailerHeum/AjouNICE/internal/repository"
	"github.com/nailerHeum/AjouNICE/internal/resolver"
	"github.com/nailerHeum/AjouNICE/internal/storage"
)

func queryFields(r *resolver.Resolver) map[string]rootField {
	return map[string]rootField{
		"colleges": func(ctx context.Context, fc fieldContext) (any, error) {
			return r.Colleges(ctx, fc.project())
		},
		"department": func(ctx context.Context, fc fieldContext) (any, error) {
			idx, err := intArg(fc.args, "dpt_idx")
			if err != nil {
				return nil, err
			}
			return r.Department(ctx, idx, fc.project())
		},
		"departments": func(ctx context.Context, fc fieldContext) (any, error) {
			college, err := optionalInt(fc.args, "college_idx")
			if err != nil {
				return nil, err
			}
			return r.Departments(ctx, college, fc.project())
		},
		"user": func(ctx context.Context, fc fieldContext) (any, error) {
			var (
				filter resolver.UserFilter
				err    error
			)
			if filter.UserIdx, err = optionalInt(fc.args, "user_idx"); err != nil {
				return nil, err
			}
			if filter.UserID, err = optionalString(fc.args, "user_id"); err != nil {
				return nil, err
			}
			return r.User(ctx, filter, fc.project())
		},
		"users": func(ctx context.Context, fc fieldContext) (any, error) {
			return r.Users(ctx, fc.project())
		},
		"boards": func(ctx context.Context, fc fieldContext) (any, error) {
			return r.Boards(ctx, fc.project())
		},
		"posts": func(ctx context.Context, fc fieldContext) (any, error) {
			category, err := optionalInt(fc.args, "category_idx")
			if err != nil {
				return nil, err
			}
			return r.Posts(ctx, category, fc.project())
		},
		"paginatedPosts": func(ctx context.Context, fc fieldContext) (any, error) {
			category, err := optionalInt(fc.args, "category_idx")
			if err != nil {
				return nil, err
			}
			limit, err := optionalInt(fc.args, "limit")
			if err != nil {
				return nil, err
			}
			offset, err := optionalInt(fc.args, "offset")
			if err != nil {
				return nil, err
			}
			edges := fc.project().Relations["edges"]
			if edges == nil {
				edges = repository.Select("post_idx")
			}
			return r.PaginatedPosts(ctx, category, intOr(limit, 0), intOr(offset, 0), edges)
		},
		"post": func(ctx context.Context, fc fieldContext) (any, error) {
			idx, err := intArg(fc.args, "post_idx")
			if err != nil {
				return nil, err
			}
			return r.Post(ctx, idx, fc.project())
		},
		"postsByKeyword": func(ctx context.Context, fc fieldContext) (any, error) {
			keyword, err := stringArg(fc.args, "keyword")
			if err != nil {
				return nil, err
			}
			return r.PostsByKeyword(ctx, keyword, fc.project())
		},
		"comment": func(ctx context.Context, fc fieldContext) (any, error) {
			idx, err := intArg(fc.args, "cmt_idx")
			if err != nil {
				return nil, err
			}
			return r.Comment(ctx, idx, fc.project())
		},
		"schedule": func(ctx context.Context, fc fieldContext) (any, error) {
			return r.Schedule(ctx)
		},
		"notice": func(ctx context.Context, fc fieldContext) (any, error) {
			code, err := stringArg(fc.args, "code")
			if err != nil {
				return nil, err
			}
			return r.Notice(ctx, code)
		},
		"doesIDExists":    existence(r.DoesIDExist, "user_id"),
		"doesEmailExists": existence(r.DoesEmailExist, "email"),
		"doesNickExists":  existence(r.DoesNickExist, "nick_nm"),
		"checkTokenValid": func(ctx context.Context, fc fieldContext) (any, error) {
			email, err := stringArg(fc.args, "email")
			if err != nil {
				return nil, err
			}
			token, err := stringArg(fc.args, "auth_token")
			if err != nil {
				return nil, err
			}
			return r.CheckTokenValid(ctx, email, token, fc.project())
		},
	}
}

func existence(check func(context.Context, string) (bool, error), arg string) rootField {
	return func(ctx context.Context, fc fieldContext) (any, error) {
		v, err := stringArg(fc.args, arg)
		if err != nil {
			return nil, err
		}
		return check(ctx, v)
	}
}

func mutationFields(r *resolver.Resolver) map[string]rootField {
	return map[string]rootField{
		"sendContactMail": func(ctx context.Context, fc fieldContext) (any, error) {
			s, err := stringArgs(fc.args, "name", "email", "content")
			if err != nil {
				return nil, err
			}
			return r.SendContactMail(ctx, s[0], s[1], s[2])
		},
		"sendRegisterAuthEmail": func(ctx context.Context, fc fieldContext) (any, error) {
			s, err := stringArgs(fc.args, "user_nm", "email", "auth_token")
			if err != nil {
				return nil, err
			}
			return r.SendRegisterAuthEmail(ctx, s[0], s[1], s[2])
		},
		"lastLogin": func(ctx context.Context, fc fieldContext) (any, error) {
			ip, err := stringArg(fc.args, "ip")
			if err != nil {
				return nil, err
			}
			return r.LastLogin(ctx, ip, fc.project())
		},
		"authorize": func(ctx context.Context, fc fieldContext) (any, error) {
			email, err := stringArg(fc.args, "email")
			if err != nil {
				return nil, err
			}
			token, err := stringArg(fc.args, "auth_token")
			if err != nil {
				return nil, err
			}
			return r.Authorize(ctx, email, token)
		},
		"resetEmailToken": func(ctx context.Context, fc fieldContext) (any, error) {
			email, err := stringArg(fc.args, "email")
			if err != nil {
				return nil, err
			}
			return r.ResetEmailToken(ctx, email)
		},
		"writePost": func(ctx context.Context, fc fieldContext) (any, error) {
			in, err := postInput(fc.args)
			if err != nil {
				return nil, err
			}
			return r.WritePost(ctx, in, fc.project())
		},
		"editPost": func(ctx context.Context, fc fieldContext) (any, error) {
			idx, err := intArg(fc.args, "post_idx")
			if err != nil {
				return nil, err
			}
			in, err := postInput(fc.args)
			if err != nil {
				return nil, err
			}
			return r.EditPost(ctx, idx, in, fc.project())
		},
		"removePost": func(ctx context.Context, fc fieldContext) (any, error) {
			idx, err := intArg(fc.args, "post_idx")
			if err != nil {
				return nil, err
			}
			return r.RemovePost(ctx, idx)
		},
		"writeReply": func(ctx context.Context, fc fieldContext) (any, error) {
			idx, err := intArg(fc.args, "post_idx")
			if err != nil {
				return nil, err
			}
			text, err := stringArg(fc.args, "text")
			if err != nil {
				return nil, err
			}
			return r.WriteReply(ctx, idx, text)
		},
		"editReply": func(ctx context.Context, fc fieldContext) (any, error) {
			idx, err := intArg(fc.args, "cmt_idx")
			if err != nil {
				return nil, err
			}
			text, err := stringArg(fc.args, "text")
			if err != nil {
				return nil, err
			}
			return r.EditReply(ctx, idx, text)
		},
		"removeReply": func(ctx context.Context, fc fieldContext) (any, error) {
			idx, err := intArg(fc.args, "cmt_idx")
			if err != nil {
				return nil, err
			}
			return r.RemoveReply(ctx, idx)
		},
		"postViewed": func(ctx context.Context, fc fieldContext) (any, error) {
			idx, err := intArg(fc.args, "post_idx")
			if err != nil {
				return nil, err
			}
			return r.PostViewed(ctx, idx, fc.project())
		},
		"addCategory": func(ctx context.Context, fc fieldContext) (any, error) {
			name, err := stringArg(fc.args, "category_nm")
			if err != nil {
				return nil, err
			}
			icon, err := optionalString(fc.args, "category_icon")
			if err != nil {
				return nil, err
			}
			return r.AddCategory(ctx, name, icon, fc.project())
		},
		"uploadedBoardImage": func(ctx context.Context, fc fieldContext) (any, error) {
			file, err := uploadArg(fc.args, "file")
			if err != nil {
				return nil, err
			}
			title, err := stringArg(fc.args, "category_title")
			if err != nil {
				return nil, err
			}
			return r.UploadedBoardImage(ctx, file, title)
		},
		"uploadedProfileImage": uploadField(r.UploadedProfileImage),
		"modifiedProfileImage": uploadField(r.ModifiedProfileImage),
		"uploadedCategoryIcon": uploadField(r.UploadedCategoryIcon),
	}
}

func subscriptionFields(r *resolver.Resolver) map[string]subscriptionField {
	return map[string]subscriptionField{
		"replyWritten":  r.ReplyWritten,
		"replyRemoved":  r.ReplyRemoved,
		"replyModified": r.ReplyModified,
	}
}

func uploadField(store func(context.Context, storage.Upload) (string, error)) rootField {
	return func(ctx context.Context, fc fieldContext) (any, error) {
		file, err := uploadArg(fc.args, "file")
		if err != nil {
			return nil, err
		}
		return store(ctx, file)
	}
}

func postInput(args map[string]any) (resolver.PostInput, error) {
	var (
		in  resolver.PostInput
		err error
	)
	if in.CategoryIdx, err = optionalInt(args, "category_idx"); err != nil {
		return in, err
	}
	if in.Title, err = optionalString(args, "title"); err != nil {
		return in, err
	}
	in.Body, err = optionalString(args, "body")
	return in, err
}

func stringArgs(args map[string]any, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		s, err := stringArg(args, name)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func intOr(v *int64, fallback int) int {
	if v == nil {
		return fallback
	}
	return int(*v)
}
