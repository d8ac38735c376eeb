package resolver

import (
	"context"

	"github.com/nailerHeum/AjouNICE/internal/models"
)

func (r *Resolver) ReplyWritten(ctx context.Context, postIdx *int64) (<-chan *models.Comment, error) {
	return r.subscribeComments(ctx, TopicReplyWritten, postIdx)
}

func (r *Resolver) ReplyRemoved(ctx context.Context, postIdx *int64) (<-chan *models.Comment, error) {
	return r.subscribeComments(ctx, TopicReplyRemoved, postIdx)
}

func (r *Resolver) ReplyModified(ctx context.Context, postIdx *int64) (<-chan *models.Comment, error) {
	return r.subscribeComments(ctx, TopicReplyModified, postIdx)
}

// subscribeComments adapts a bus listener to a typed stream, keeping only
// comments on postIdx when it is set. The stream closes with ctx.
func (r *Resolver) subscribeComments(ctx context.Context, topic string, postIdx *int64) (<-chan *models.Comment, error) {
	events, err := r.bus.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan *models.Comment)
	go func() {
		defer close(out)
		for ev := range events {
			comment, ok := ev.(*models.Comment)
			if !ok || comment == nil {
				continue
			}
			if postIdx != nil && comment.PostIdx != *postIdx {
				continue
			}
			select {
			case out <- comment:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
