// Package resolver implements the board gateway's queries, mutations and
// subscriptions on top of the data access adapter, the notification bus and
// the upload coordinator.
//
// Mutations that change shared data move through
//
//	received -> authorized -> store-mutated -> re-read -> published -> returned
//
// and anything that fails after store-mutated is logged, never returned.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nailerHeum/AjouNICE/internal/mailer"
	"github.com/nailerHeum/AjouNICE/internal/pubsub"
	"github.com/nailerHeum/AjouNICE/internal/repository"
	"github.com/nailerHeum/AjouNICE/internal/service"
	"github.com/nailerHeum/AjouNICE/internal/storage"
)

// Comment topics on the notification bus.
const (
	TopicReplyWritten  = "REPLY_WRITTEN"
	TopicReplyRemoved  = "REPLY_REMOVED"
	TopicReplyModified = "REPLY_MODIFIED"
)

// Mailer queues outbound mail without blocking the caller.
type Mailer interface {
	Enqueue(msg mailer.Message) error
}

// Lookup fetches data owned by the sibling schedule/notice service.
type Lookup interface {
	Schedule(ctx context.Context) (json.RawMessage, error)
	Notice(ctx context.Context, code string) (json.RawMessage, error)
}

// Uploader stores client files and removes orphans.
type Uploader interface {
	Store(ctx context.Context, upload storage.Upload) (*storage.Stored, error)
	Remove(ctx context.Context, key string) error
}

// Deps are the collaborators a Resolver is built from.
type Deps struct {
	Stores   *repository.Stores
	Bus      *pubsub.Bus
	Uploads  Uploader
	Mail     Mailer
	Composer *mailer.Composer
	Lookup   Lookup
	Auth     service.AuthService
	Logger   *slog.Logger

	// CompensateOrphans deletes an uploaded object when the store update
	// that should reference it fails.
	CompensateOrphans bool
}

// Resolver is stateless between calls; every field is shared, read-only
// infrastructure.
type Resolver struct {
	stores     *repository.Stores
	bus        *pubsub.Bus
	uploads    Uploader
	mail       Mailer
	composer   *mailer.Composer
	lookup     Lookup
	auth       service.AuthService
	logger     *slog.Logger
	compensate bool
}

// New creates a Resolver.
func New(deps Deps) *Resolver {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		stores:     deps.Stores,
		bus:        deps.Bus,
		uploads:    deps.Uploads,
		mail:       deps.Mail,
		composer:   deps.Composer,
		lookup:     deps.Lookup,
		auth:       deps.Auth,
		logger:     logger,
		compensate: deps.CompensateOrphans,
	}
}

// followUpFailed records a failure that happened after the store mutation
// committed. The mutation still reports success.
func (r *Resolver) followUpFailed(op, step string, err error) {
	r.logger.Warn("post-commit follow-up failed",
		"operation", op,
		"step", step,
		"error", err,
	)
}

func (r *Resolver) publish(op, topic string, payload any) {
	n := r.bus.Publish(topic, payload)
	r.logger.Debug("event published", "operation", op, "topic", topic, "listeners", n)
}

func (r *Resolver) enqueue(op string, msg mailer.Message, err error) {
	if err == nil {
		err = r.mail.Enqueue(msg)
	}
	if err != nil {
		r.followUpFailed(op, "mail", err)
	}
}

var errCommentVanished = errors.New("comment no longer exists")
