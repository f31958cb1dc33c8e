package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/iliyamo/cityhelp/internal/events"
	"github.com/iliyamo/cityhelp/internal/model"
)

// Object key prefixes per parent kind.
const (
	occurrenceImagePrefix = "occurrences"
	commentImagePrefix    = "comments"
)

// AttachmentService manages comments and images.  Only the author of an
// occurrence or comment may attach images to it.
type AttachmentService struct {
	occurrences OccurrenceRepository
	comments    CommentRepository
	images      ImageRepository
	store       ImageStore
	maxBytes    int64
	events      EventPublisher
	options
}

func NewAttachmentService(occurrences OccurrenceRepository, comments CommentRepository, images ImageRepository,
	store ImageStore, maxBytes int64, pub EventPublisher, opts ...Option) *AttachmentService {
	return &AttachmentService{
		occurrences: occurrences,
		comments:    comments,
		images:      images,
		store:       store,
		maxBytes:    maxBytes,
		events:      pub,
		options:     buildOptions(opts),
	}
}

// Upload is an image payload as received from the client.
type Upload struct {
	Filename string
	Data     []byte
}

// CreateComment lets any authenticated user comment on an existing
// occurrence.
func (s *AttachmentService) CreateComment(ctx context.Context, callerID, occurrenceID uint64, text string) (*model.Comment, error) {
	if callerID == 0 {
		return nil, ErrAuthentication
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidField("text", "required")
	}
	if _, err := s.occurrences.GetByID(ctx, occurrenceID); err != nil {
		return nil, fromRepo("get occurrence", err)
	}
	c := &model.Comment{
		OccurrenceID: occurrenceID,
		AuthorID:     callerID,
		Body:         text,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fromRepo("create comment", err)
	}
	publish(ctx, s.events, s.logger, events.Event{
		Kind: events.CommentCreated, OccurrenceID: occurrenceID, UserID: callerID, CommentID: c.ID, OccurredAt: c.CreatedAt,
	})
	return c, nil
}

func (s *AttachmentService) ListComments(ctx context.Context, occurrenceID uint64) ([]model.Comment, error) {
	if _, err := s.occurrences.GetByID(ctx, occurrenceID); err != nil {
		return nil, fromRepo("get occurrence", err)
	}
	items, err := s.comments.ListByOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, fromRepo("list comments", err)
	}
	return items, nil
}

func (s *AttachmentService) GetComment(ctx context.Context, id uint64) (*model.Comment, error) {
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get comment", err)
	}
	return c, nil
}

// AttachImageToOccurrence stores an image on an occurrence owned by the
// caller.
func (s *AttachmentService) AttachImageToOccurrence(ctx context.Context, callerID, occurrenceID uint64, up Upload) (*model.Image, error) {
	return s.attach(ctx, callerID, model.Parent{Kind: model.ParentOccurrence, ID: occurrenceID}, up)
}

// AttachImageToComment stores an image on a comment written by the caller.
func (s *AttachmentService) AttachImageToComment(ctx context.Context, callerID, commentID uint64, up Upload) (*model.Image, error) {
	return s.attach(ctx, callerID, model.Parent{Kind: model.ParentComment, ID: commentID}, up)
}

func (s *AttachmentService) attach(ctx context.Context, callerID uint64, parent model.Parent, up Upload) (*model.Image, error) {
	if callerID == 0 {
		return nil, ErrAuthentication
	}
	author, err := s.parentAuthor(ctx, parent)
	if err != nil {
		return nil, err
	}
	if author != callerID {
		return nil, ErrForbidden
	}

	if len(up.Data) == 0 {
		return nil, invalid(CodeInvalidImage, "image is empty")
	}
	if s.maxBytes > 0 && int64(len(up.Data)) > s.maxBytes {
		return nil, invalid(CodeImageTooLarge, fmt.Sprintf("image exceeds %d bytes", s.maxBytes))
	}
	mt := mimetype.Detect(up.Data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, invalid(CodeInvalidImage, "file is not an image: "+mt.String())
	}
	if s.store == nil {
		return nil, fmt.Errorf("store image: object storage not configured: %w", ErrDependency)
	}

	prefix := occurrenceImagePrefix
	if parent.Kind == model.ParentComment {
		prefix = commentImagePrefix
	}
	key := prefix + "/" + uuid.NewString() + mt.Extension()
	contentType := strings.SplitN(mt.String(), ";", 2)[0]

	url, err := s.store.Put(ctx, key, contentType, up.Data)
	if err != nil {
		return nil, fmt.Errorf("store image: %v: %w", err, ErrDependency)
	}
	img := &model.Image{
		UploaderID:  callerID,
		ObjectKey:   key,
		URL:         url,
		ContentType: contentType,
		SizeBytes:   int64(len(up.Data)),
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
	}
	id := parent.ID
	if parent.Kind == model.ParentComment {
		img.CommentID = &id
	} else {
		img.OccurrenceID = &id
	}
	if err := s.images.Create(ctx, img); err != nil {
		if derr := s.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.logger.Error("remove orphaned image object failed", "key", key, "err", derr)
		}
		return nil, fromRepo("create image", err)
	}
	return img, nil
}

// ListImages returns the images of an existing occurrence or comment.
func (s *AttachmentService) ListImages(ctx context.Context, parent model.Parent) ([]model.Image, error) {
	if _, err := s.parentAuthor(ctx, parent); err != nil {
		return nil, err
	}
	items, err := s.images.ListByParent(ctx, parent)
	if err != nil {
		return nil, fromRepo("list images", err)
	}
	return items, nil
}

func (s *AttachmentService) GetImage(ctx context.Context, id uint64) (*model.Image, error) {
	img, err := s.images.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get image", err)
	}
	return img, nil
}

// DeleteImage removes an image row and its stored object.  Only the author
// of the parent may do so.
func (s *AttachmentService) DeleteImage(ctx context.Context, callerID, id uint64) error {
	if callerID == 0 {
		return ErrAuthentication
	}
	img, err := s.images.GetByID(ctx, id)
	if err != nil {
		return fromRepo("get image", err)
	}
	author, err := s.parentAuthor(ctx, img.Parent())
	if err != nil {
		return err
	}
	if author != callerID {
		return ErrForbidden
	}
	if err := s.images.Delete(ctx, id); err != nil {
		return fromRepo("delete image", err)
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, img.ObjectKey); err != nil {
			s.logger.Error("remove image object failed", "image_id", id, "key", img.ObjectKey, "err", err)
		}
	}
	return nil
}

// parentAuthor returns the user allowed to attach images to parent.
func (s *AttachmentService) parentAuthor(ctx context.Context, p model.Parent) (uint64, error) {
	switch p.Kind {
	case model.ParentOccurrence:
		o, err := s.occurrences.GetByID(ctx, p.ID)
		if err != nil {
			return 0, fromRepo("get occurrence", err)
		}
		return o.OwnerID, nil
	case model.ParentComment:
		c, err := s.comments.GetByID(ctx, p.ID)
		if err != nil {
			return 0, fromRepo("get comment", err)
		}
		return c.AuthorID, nil
	}
	return 0, errors.New("unknown image parent " + string(p.Kind))
}

