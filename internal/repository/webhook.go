package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/nfse-reader/constants"
	"github.com/joseph-ayodele/nfse-reader/internal/common"
	"github.com/joseph-ayodele/nfse-reader/internal/entity"
)

const (
	webhookTable = "webhook"

	// DefaultWebhookLimit caps List when no limit is given.
	DefaultWebhookLimit = 1000
)

var webhookColumns = []string{"id", "url", "created_at", "actions"}

type WebhookRepository interface {
	Create(ctx context.Context, url, actions string) (*entity.Webhook, error)
	List(ctx context.Context, limit int) ([]*entity.Webhook, error)
	ListForAction(ctx context.Context, action constants.Action) ([]*entity.Webhook, error)
}

type webhookRepo struct {
	db  *DB
	log *slog.Logger
}

func NewWebhookRepository(db *DB, log *slog.Logger) WebhookRepository {
	if log == nil {
		log = slog.Default()
	}
	return &webhookRepo{db: db, log: log}
}

// Create stores a subscription. The action list is normalized to lowercase
// tokens joined by commas.
func (r *webhookRepo) Create(ctx context.Context, url, actions string) (*entity.Webhook, error) {
	actions = strings.Join(constants.ParseActions(actions), ",")
	created := now()
	ins := entsql.Dialect(r.db.Dialect).Insert(webhookTable).
		Columns("url", "created_at", "actions").
		Values(url, created, actions)

	id, err := r.db.insertID(ctx, r.db.Driver, ins)
	if err != nil {
		r.log.Error("webhook create failed", "url", url, "err", err)
		return nil, common.NewAppError("DB_ERROR", "create webhook", errors.Join(common.ErrDatabase, err))
	}
	r.log.Info("webhook registered", "webhook_id", id, "url", url, "actions", actions)
	return &entity.Webhook{ID: id, URL: url, CreatedAt: created, Actions: actions}, nil
}

// List returns subscriptions newest first, at most limit of them
// (DefaultWebhookLimit when limit <= 0).
func (r *webhookRepo) List(ctx context.Context, limit int) ([]*entity.Webhook, error) {
	if limit <= 0 {
		limit = DefaultWebhookLimit
	}
	b := entsql.Dialect(r.db.Dialect)
	t := b.Table(webhookTable)
	query, args := b.Select(webhookColumns...).From(t).
		OrderBy(entsql.Desc(t.C("created_at")), entsql.Desc(t.C("id"))).
		Limit(limit).
		Query()

	hooks, err := r.query(ctx, query, args)
	if err != nil {
		r.log.Error("webhook list failed", "err", err)
		return nil, common.NewAppError("DB_ERROR", "list webhooks", errors.Join(common.ErrDatabase, err))
	}
	return hooks, nil
}

// ListForAction returns subscriptions whose action list names action as a
// whole token. The LIKE prefilter is refined with an exact token match.
func (r *webhookRepo) ListForAction(ctx context.Context, action constants.Action) ([]*entity.Webhook, error) {
	b := entsql.Dialect(r.db.Dialect)
	t := b.Table(webhookTable)

	var preds []*entsql.Predicate
	for _, name := range action.Names() {
		preds = append(preds, entsql.Contains(t.C("actions"), name))
	}
	query, args := b.Select(webhookColumns...).From(t).
		Where(entsql.Or(preds...)).
		OrderBy(t.C("id")).
		Query()

	candidates, err := r.query(ctx, query, args)
	if err != nil {
		r.log.Error("webhook lookup failed", "action", action, "err", err)
		return nil, common.NewAppError("DB_ERROR", "list webhooks", errors.Join(common.ErrDatabase, err))
	}
	out := candidates[:0]
	for _, h := range candidates {
		if constants.HasAction(h.Actions, action) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *webhookRepo) query(ctx context.Context, query string, args []any) ([]*entity.Webhook, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Webhook
	for rows.Next() {
		var (
			h       entity.Webhook
			created nullTime
		)
		if err := rows.Scan(&h.ID, &h.URL, &created, &h.Actions); err != nil {
			return nil, err
		}
		h.CreatedAt = created.Time
		out = append(out, &h)
	}
	return out, rows.Err()
}
