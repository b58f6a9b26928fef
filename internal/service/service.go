package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Error carries a user-facing message and wraps one of the store sentinels so
// callers can map it with errors.Is.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func invalid(message string) error {
	return &Error{Kind: store.ErrInvalid, Message: message}
}

func notFound(message string) error {
	return &Error{Kind: store.ErrNotFound, Message: message}
}

func conflict(message string) error {
	return &Error{Kind: store.ErrConflict, Message: message}
}

type Options struct {
	Location        *time.Location
	Now             func() time.Time
	Logger          logrus.FieldLogger
	DefaultShopName string
}

type Service struct {
	repo            store.Repository
	loc             *time.Location
	now             func() time.Time
	log             logrus.FieldLogger
	validate        *validator.Validate
	defaultShopName string
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if strings.TrimSpace(opts.DefaultShopName) == "" {
		opts.DefaultShopName = "My Shop"
	}

	return &Service{
		repo:            repo,
		loc:             opts.Location,
		now:             opts.Now,
		log:             opts.Logger,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		defaultShopName: strings.TrimSpace(opts.DefaultShopName),
	}
}

// check runs the struct's validate tags and reports any failure as message.
func (s *Service) check(req any, message string) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			s.log.WithField("field", verrs[0].Namespace()).WithField("rule", verrs[0].Tag()).Debug("validation failed")
		}
		return invalid(message)
	}
	return nil
}

// timestamp is the createdAt/updatedAt format: RFC3339 in UTC with millis.
func (s *Service) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// today is the local calendar date stored in date columns.
func (s *Service) today() string {
	return s.now().In(s.loc).Format("2006-01-02")
}

func (s *Service) audit(ctx context.Context, action string, entity string, id int) {
	entry := s.log.WithField("action", action).WithField("entity", entity).WithField("id", id)
	if actor, ok := ActorFromContext(ctx); ok {
		entry = entry.WithField("actor", actor.Username)
	}
	entry.Info("record changed")
}

// ParseID parses a path id; anything but a positive integer is not found.
func ParseID(raw string, entity string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id < 1 {
		return 0, notFound(entity + " not found")
	}
	return id, nil
}

func maxID[T any](items []T, id func(T) int) int {
	maxValue := 0
	for _, item := range items {
		if v := id(item); v > maxValue {
			maxValue = v
		}
	}
	return maxValue
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
