package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/cityhelp/internal/model"
	"github.com/iliyamo/cityhelp/internal/validation"
)

// CatalogService manages occurrence types.
type CatalogService struct {
	types TypeRepository
	options
}

func NewCatalogService(types TypeRepository, opts ...Option) *CatalogService {
	return &CatalogService{types: types, options: buildOptions(opts)}
}

// TypeInput creates or replaces a type.  Duration accepts a Go duration
// ("6h", "90m") or a clock form ("06:00:00", "1 06:00:00").
type TypeInput struct {
	Title       string `json:"title" validate:"notblank,max=50"`
	Description string `json:"description" validate:"max=300"`
	Duration    string `json:"duration" validate:"notblank"`
}

func (s *CatalogService) Create(ctx context.Context, in TypeInput) (*model.Type, error) {
	t, err := typeFromInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.types.Create(ctx, t); err != nil {
		return nil, fromRepo("create type", err)
	}
	return t, nil
}

func (s *CatalogService) Get(ctx context.Context, id uint64) (*model.Type, error) {
	t, err := s.types.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get type", err)
	}
	return t, nil
}

func (s *CatalogService) List(ctx context.Context) ([]model.Type, error) {
	types, err := s.types.List(ctx)
	if err != nil {
		return nil, fromRepo("list types", err)
	}
	return types, nil
}

// Update replaces a type.  Deadlines already computed from the old duration
// stay as they are.
func (s *CatalogService) Update(ctx context.Context, id uint64, in TypeInput) (*model.Type, error) {
	t, err := typeFromInput(in)
	if err != nil {
		return nil, err
	}
	t.ID = id
	if err := s.types.Update(ctx, t); err != nil {
		return nil, fromRepo("update type", err)
	}
	return t, nil
}

// Delete fails with ErrReferenced while any occurrence uses the type.
func (s *CatalogService) Delete(ctx context.Context, id uint64) error {
	return fromRepo("delete type", s.types.Delete(ctx, id))
}

func typeFromInput(in TypeInput) (*model.Type, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if fields := validation.Struct(in); fields != nil {
		return nil, invalidFields(fields)
	}
	d, err := ParseDuration(in.Duration)
	if err != nil || d < time.Second {
		return nil, invalidField("duration", "must be a positive duration of at least one second")
	}
	return &model.Type{
		Title:           in.Title,
		Description:     in.Description,
		DurationSeconds: int64(d / time.Second),
	}, nil
}

// maxDurationSeconds is the longest duration time.Duration can hold.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// ParseDuration reads "6h30m" style values and "[D ]HH:MM:SS" clock values.
// Clock values that do not fit in a time.Duration are rejected.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	var days int64
	clock := s
	if i := strings.IndexByte(s, ' '); i > 0 {
		n, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		days, clock = n, strings.TrimSpace(s[i+1:])
	}
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	var hms [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		hms[i] = n
	}
	if days > maxDurationSeconds/86400 || hms[0] > maxDurationSeconds/3600 {
		return 0, fmt.Errorf("duration %q out of range", s)
	}
	secs := days*86400 + hms[0]*3600 + hms[1]*60 + hms[2]
	if secs > maxDurationSeconds {
		return 0, fmt.Errorf("duration %q out of range", s)
	}
	return time.Duration(secs) * time.Second, nil
}
