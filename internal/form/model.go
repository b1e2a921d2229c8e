package form

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Filter narrows List results. A zero Filter matches every form.
type Filter struct {
	PostStream primitive.ObjectID
	Limit      int64
}

// Store is the persistence collaborator. Implementations only need to make
// the write durable; schema rules and derived fields are handled by Model.
type Store interface {
	Insert(ctx context.Context, f *Form) error
	Update(ctx context.Context, f *Form) error
	Get(ctx context.Context, id primitive.ObjectID) (*Form, error)
	List(ctx context.Context, filter Filter) ([]*Form, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

const DefaultURLPrefix = "/forms"

// Model owns the save pipeline for forms: validate, derive, write.
// It holds no global state; build one per process and pass it around.
type Model struct {
	store     Store
	now       func() time.Time
	newID     func() primitive.ObjectID
	urlPrefix string
}

type Option func(*Model)

// WithClock overrides the time source used for created/lastModified.
// The default clock is truncated to milliseconds, the precision BSON keeps.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithURLPrefix sets the path prefix of derived urls.
func WithURLPrefix(prefix string) Option {
	return func(m *Model) { m.urlPrefix = prefix }
}

// WithIDGenerator overrides how new form ids are minted.
func WithIDGenerator(gen func() primitive.ObjectID) Option {
	return func(m *Model) { m.newID = gen }
}

func NewModel(store Store, opts ...Option) *Model {
	m := &Model{
		store:     store,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:     primitive.NewObjectID,
		urlPrefix: DefaultURLPrefix,
	}
	for _, o := range opts {
		o(m)
	}
	m.urlPrefix = "/" + strings.Trim(m.urlPrefix, "/")
	return m
}

// Store returns the collaborator the model writes to.
func (m *Model) Store() Store { return m.store }

// Save validates f and persists it. The first save assigns the id, url,
// created, lastModified and version 1; every later save bumps version by one
// and refreshes lastModified, even when nothing else changed.
//
// On a *ValidationError or *PersistenceError f is left as it was before the
// call. On success f holds the persisted values and is also returned.
func (m *Model) Save(ctx context.Context, f *Form) (*Form, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}

	next := f.Clone()
	now := m.now()
	op := "update"
	if next.IsNew() {
		op = "insert"
		next.ID = m.newID()
		next.Created = now
		next.Version = 1
		next.URL = m.deriveURL(next)
	} else {
		next.Version++
	}
	if next.LastModified.After(now) {
		// clock went backwards; keep lastModified non-decreasing
		now = next.LastModified
	}
	next.LastModified = now
	if next.Fields == nil {
		next.Fields = []map[string]interface{}{}
	}

	var err error
	if op == "insert" {
		err = m.store.Insert(ctx, next)
	} else {
		err = m.store.Update(ctx, next)
	}
	if err != nil {
		return nil, &PersistenceError{Op: op, Err: err}
	}

	*f = *next
	return f, nil
}

func (m *Model) deriveURL(f *Form) string {
	if m.urlPrefix == "/" {
		return "/" + f.ID.Hex()
	}
	return m.urlPrefix + "/" + f.ID.Hex()
}
