package service

import (
	"context"
	"strings"

	"devsnippet/internal/models"
	"devsnippet/internal/notifications"
	"devsnippet/internal/observability"
	"devsnippet/internal/policy"
	"devsnippet/internal/repository"
	"devsnippet/internal/validation"
)

type PostService struct {
	posts    repository.PostRepository
	releaser MediaReleaser
	events   EventPublisher
}

type CreatePostInput struct {
	Title          string           `json:"title"`
	Content        string           `json:"content"`
	MediaURL       string           `json:"mediaUrl"`
	MediaType      models.MediaType `json:"mediaType"`
	MediaPublicID  string           `json:"mediaPublicId"`
	IsDownloadable *bool            `json:"isDownloadable"`
	Tags           []string         `json:"tags"`
}

// UpdatePostInput is a partial update: nil fields are kept, empty strings overwrite.
type UpdatePostInput struct {
	Title          *string           `json:"title"`
	Content        *string           `json:"content"`
	MediaURL       *string           `json:"mediaUrl"`
	MediaType      *models.MediaType `json:"mediaType"`
	MediaPublicID  *string           `json:"mediaPublicId"`
	IsDownloadable *bool             `json:"isDownloadable"`
	Tags           []string          `json:"tags"`
}

func NewPostService(posts repository.PostRepository, releaser MediaReleaser, events EventPublisher) *PostService {
	return &PostService{posts: posts, releaser: releaser, events: events}
}

func (s *PostService) List(ctx context.Context, page Page) ([]*models.Post, error) {
	return s.posts.List(ctx, page.Limit, page.Offset)
}

func (s *PostService) Get(ctx context.Context, id string) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

func (s *PostService) Create(ctx context.Context, actor policy.Identity, in CreatePostInput) (*models.Post, error) {
	if !actor.Authenticated() {
		return nil, models.NewUnauthenticatedError("No token, authorization denied")
	}
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, models.NewBadRequestError("Title and content are required")
	}
	if err := validation.ValidateContent(in.Content); err != nil {
		return nil, models.NewBadRequestError("Title and content are required")
	}

	mediaType := in.MediaType
	if mediaType == "" {
		mediaType = models.MediaNone
	}
	if !mediaType.Valid() {
		return nil, models.NewBadRequestError("Invalid media type")
	}

	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewBadRequestError(err.Error())
	}

	downloadable := true
	if in.IsDownloadable != nil {
		downloadable = *in.IsDownloadable
	}

	post := &models.Post{
		Title:          strings.TrimSpace(in.Title),
		Content:        in.Content,
		AuthorID:       actor.ID,
		MediaURL:       in.MediaURL,
		MediaType:      mediaType,
		MediaPublicID:  in.MediaPublicID,
		IsDownloadable: downloadable,
		Tags:           tags,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	publish(ctx, s.events, notifications.NewPostEvent(notifications.EventPostCreated, post, actor.ID))
	return post, nil
}

// Update applies in to the post. Existence is checked before ownership.
func (s *PostService) Update(ctx context.Context, actor policy.Identity, id string, in UpdatePostInput) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.RequirePostEditor(actor, post); err != nil {
		return nil, err
	}

	previous := post.MediaRef()

	if in.Title != nil {
		if err := validation.ValidateTitleLength(*in.Title); err != nil {
			return nil, models.NewBadRequestError(err.Error())
		}
		post.Title = *in.Title
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if in.MediaURL != nil {
		post.MediaURL = *in.MediaURL
	}
	if in.MediaType != nil {
		if !in.MediaType.Valid() {
			return nil, models.NewBadRequestError("Invalid media type")
		}
		post.MediaType = *in.MediaType
	}
	if in.MediaPublicID != nil {
		post.MediaPublicID = *in.MediaPublicID
	}
	if in.IsDownloadable != nil {
		post.IsDownloadable = *in.IsDownloadable
	}
	if in.Tags != nil {
		tags, err := validation.NormalizeTags(in.Tags)
		if err != nil {
			return nil, models.NewBadRequestError(err.Error())
		}
		post.Tags = tags
	}

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}

	if previous.PublicID != "" && previous.PublicID != post.MediaPublicID {
		release(ctx, s.posts, s.releaser, 0, previous)
	}

	updated, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, notifications.NewPostEvent(notifications.EventPostUpdated, updated, actor.ID))
	return updated, nil
}

// Delete removes the post, then releases its media in the background.
func (s *PostService) Delete(ctx context.Context, actor policy.Identity, id string) error {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.RequirePostEditor(actor, post); err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}

	if post.HasMedia() {
		release(ctx, s.posts, s.releaser, 0, post.MediaRef())
	}
	publish(ctx, s.events, notifications.NewPostEvent(notifications.EventPostDeleted, post, actor.ID))
	return nil
}

// ToggleLike flips the actor's membership in the post's likes and returns the stored post.
func (s *PostService) ToggleLike(ctx context.Context, actor policy.Identity, id string) (*models.Post, error) {
	if !actor.Authenticated() {
		return nil, models.NewUnauthenticatedError("No token, authorization denied")
	}

	post, liked, err := s.posts.ToggleLike(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}

	state := "unliked"
	if liked {
		state = "liked"
	}
	observability.LikeToggles.WithLabelValues(state).Inc()

	publish(ctx, s.events, notifications.NewPostEvent(notifications.EventPostLiked, post, actor.ID))
	return post, nil
}
