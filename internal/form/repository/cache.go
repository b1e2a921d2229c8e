package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fooforms/fooforms/backend/go-services/internal/form"
	"github.com/fooforms/fooforms/backend/go-services/pkg/logger"
	"github.com/fooforms/fooforms/backend/go-services/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultCacheTTL = 10 * time.Minute

// CachedRepo puts a Redis read-through cache in front of another form.Store.
// Forms are stored as JSON under "<prefix><id hex>". The cache is written only
// after the backing store accepted the write, and any Redis failure falls
// through to the backing store.
type CachedRepo struct {
	next   form.Store
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCachedRepo wraps next. Prefix defaults to "form:" and ttl to DefaultCacheTTL.
func NewCachedRepo(next form.Store, client *redis.Client, prefix string, ttl time.Duration) *CachedRepo {
	if prefix == "" {
		prefix = "form:"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedRepo{next: next, client: client, prefix: prefix, ttl: ttl}
}

func (r *CachedRepo) key(id primitive.ObjectID) string {
	return r.prefix + id.Hex()
}

func (r *CachedRepo) Insert(ctx context.Context, f *form.Form) error {
	if err := r.next.Insert(ctx, f); err != nil {
		return err
	}
	r.put(ctx, f)
	return nil
}

func (r *CachedRepo) Update(ctx context.Context, f *form.Form) error {
	if err := r.next.Update(ctx, f); err != nil {
		// the backing copy may have changed under us
		r.evict(ctx, f.ID)
		return err
	}
	r.put(ctx, f)
	return nil
}

func (r *CachedRepo) Get(ctx context.Context, id primitive.ObjectID) (*form.Form, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	switch {
	case err == nil:
		var f form.Form
		if jerr := json.Unmarshal(b, &f); jerr == nil {
			metrics.FormCacheRequests.WithLabelValues("hit").Inc()
			return &f, nil
		}
		logger.Warnf("form cache: dropping undecodable entry %s", r.key(id))
		r.evict(ctx, id)
	case err == redis.Nil:
	default:
		logger.Warnf("form cache: get %s: %v", r.key(id), err)
	}
	metrics.FormCacheRequests.WithLabelValues("miss").Inc()

	f, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.put(ctx, f)
	return f, nil
}

// List always goes to the backing store.
func (r *CachedRepo) List(ctx context.Context, filter form.Filter) ([]*form.Form, error) {
	return r.next.List(ctx, filter)
}

func (r *CachedRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	err := r.next.Delete(ctx, id)
	r.evict(ctx, id)
	return err
}

func (r *CachedRepo) put(ctx context.Context, f *form.Form) {
	b, err := json.Marshal(f)
	if err != nil {
		logger.Warnf("form cache: encode %s: %v", f.ID.Hex(), err)
		return
	}
	if err := r.client.Set(ctx, r.key(f.ID), b, r.ttl).Err(); err != nil {
		logger.Warnf("form cache: set %s: %v", r.key(f.ID), err)
	}
}

func (r *CachedRepo) evict(ctx context.Context, id primitive.ObjectID) {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		logger.Warnf("form cache: del %s: %v", r.key(id), err)
	}
}
