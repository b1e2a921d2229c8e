package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/fooforms/fooforms/backend/go-services/internal/form"
	"github.com/fooforms/fooforms/backend/go-services/pkg/logger"
	"github.com/fooforms/fooforms/backend/go-services/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = form.ErrNotFound
	ErrInvalidID    = errors.New("invalid form id")
	ErrNoIconStore  = errors.New("icon storage not configured")
	ErrIconTooLarge = errors.New("icon exceeds size limit")
	ErrNoIcon       = errors.New("form has no icon")
)

const (
	// MaxIconSize bounds uploads accepted by SetIcon.
	MaxIconSize = 2 << 20
	// IconURLExpiry is how long a URL returned by IconURL stays valid.
	IconURLExpiry = 15 * time.Minute
)

// Service defines the form operations used by the handler layer.
type Service interface {
	Create(ctx context.Context, values map[string]interface{}) (*form.Form, error)
	Get(ctx context.Context, id string) (*form.Form, error)
	List(ctx context.Context, stream string, limit int64) ([]*form.Form, error)
	Update(ctx context.Context, id string, values map[string]interface{}) (*form.Form, error)
	Delete(ctx context.Context, id string) error
	SetIcon(ctx context.Context, id string, icon Icon) (*form.Form, error)
	IconURL(ctx context.Context, id string) (string, error)
}

// IconStore is the object storage used for uploaded form icons.
type IconStore interface {
	PutIcon(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	RemoveIcon(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Icon is an uploaded icon file.
type Icon struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type formService struct {
	model *form.Model
	icons IconStore
}

// New returns a Service that saves through model. icons may be nil, in which
// case SetIcon fails with ErrNoIconStore.
func New(model *form.Model, icons IconStore) Service {
	return &formService{model: model, icons: icons}
}

func (s *formService) Create(ctx context.Context, values map[string]interface{}) (*form.Form, error) {
	f, err := form.New(values)
	if err != nil {
		metrics.FormSaves.WithLabelValues("insert", "invalid").Inc()
		return nil, err
	}
	return s.save(ctx, f)
}

func (s *formService) Get(ctx context.Context, id string) (*form.Form, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.model.Store().Get(ctx, oid)
}

func (s *formService) List(ctx context.Context, stream string, limit int64) ([]*form.Form, error) {
	filter := form.Filter{Limit: limit}
	if stream != "" {
		oid, err := primitive.ObjectIDFromHex(stream)
		if err != nil {
			return nil, fmt.Errorf("%w: stream %q", ErrInvalidID, stream)
		}
		filter.PostStream = oid
	}
	return s.model.Store().List(ctx, filter)
}

// Update applies values on top of the stored form and saves it.
func (s *formService) Update(ctx context.Context, id string, values map[string]interface{}) (*form.Form, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := f.Assign(values); err != nil {
		metrics.FormSaves.WithLabelValues("update", "invalid").Inc()
		return nil, err
	}
	return s.save(ctx, f)
}

func (s *formService) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.model.Store().Delete(ctx, oid); err != nil {
		return err
	}
	logger.Infow("form deleted", "id", id)
	return nil
}

// SetIcon uploads the icon to object storage, points the form's icon at the
// stored key and saves the form.
func (s *formService) SetIcon(ctx context.Context, id string, icon Icon) (*form.Form, error) {
	if s.icons == nil {
		return nil, ErrNoIconStore
	}
	if icon.Size > MaxIconSize {
		return nil, ErrIconTooLarge
	}
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	key := iconKey(f.ID, icon.Filename)
	if err := s.icons.PutIcon(ctx, key, icon.Body, icon.Size, icon.ContentType); err != nil {
		return nil, fmt.Errorf("upload icon: %w", err)
	}
	replaced := f.Icon != nil && *f.Icon == key
	f.Icon = &key
	saved, err := s.save(ctx, f)
	if err != nil {
		// the stored form still references key
		if replaced {
			logger.Warnw("icon overwritten but form not saved", "id", id, "key", key)
		} else if rerr := s.icons.RemoveIcon(ctx, key); rerr != nil {
			logger.Errorw("orphaned icon", "id", id, "key", key, "err", rerr)
		}
		return nil, err
	}
	return saved, nil
}

// IconURL returns a short-lived download URL for the form's icon.
func (s *formService) IconURL(ctx context.Context, id string) (string, error) {
	if s.icons == nil {
		return "", ErrNoIconStore
	}
	f, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if f.Icon == nil || *f.Icon == "" {
		return "", ErrNoIcon
	}
	// icons set by hand rather than uploaded are returned as they are
	if !strings.HasPrefix(*f.Icon, iconPrefix) {
		return *f.Icon, nil
	}
	return s.icons.PresignedURL(ctx, *f.Icon, IconURLExpiry)
}

func (s *formService) save(ctx context.Context, f *form.Form) (*form.Form, error) {
	op := "update"
	if f.IsNew() {
		op = "insert"
	}
	saved, err := s.model.Save(ctx, f)
	switch {
	case err == nil:
		metrics.FormSaves.WithLabelValues(op, "ok").Inc()
		logger.Infow("form saved", "id", saved.ID.Hex(), "op", op, "version", saved.Version)
		return saved, nil
	case form.IsValidation(err):
		metrics.FormSaves.WithLabelValues(op, "invalid").Inc()
		logger.Debugf("form %s rejected: %v", op, err)
	default:
		metrics.FormSaves.WithLabelValues(op, "error").Inc()
		logger.Errorw("form save failed", "op", op, "err", err)
	}
	return nil, err
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

const iconPrefix = "icons/"

func iconKey(id primitive.ObjectID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	return iconPrefix + id.Hex() + ext
}
