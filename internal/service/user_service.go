package service

import (
	"context"
	"strings"

	"devsnippet/internal/models"
	"devsnippet/internal/policy"
	"devsnippet/internal/repository"
	"devsnippet/internal/validation"
)

type UserService struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	releaser MediaReleaser
}

// UpdateProfileInput carries the self-service profile fields. An empty username is ignored.
type UpdateProfileInput struct {
	Username *string `json:"username"`
	Bio      *string `json:"bio"`
}

func NewUserService(users repository.UserRepository, posts repository.PostRepository, releaser MediaReleaser) *UserService {
	return &UserService{users: users, posts: posts, releaser: releaser}
}

// PublicProfile looks a user up by username for anonymous visitors.
func (s *UserService) PublicProfile(ctx context.Context, username string) (*models.PublicProfile, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User")
	}

	count, err := s.posts.CountByAuthor(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	profile := user.PublicProfile()
	profile.PostsCount = count
	return &profile, nil
}

func (s *UserService) UpdateOwnProfile(ctx context.Context, actor policy.Identity, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByIDForUpdate(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	var changed []string
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username != "" && username != user.Username {
			if err := validation.ValidateUsername(username); err != nil {
				return nil, models.NewBadRequestError(err.Error())
			}
			existing, err := s.users.GetByUsername(ctx, username)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != user.ID {
				return nil, models.NewConflictError("This username is already taken")
			}
			user.Username = username
			changed = append(changed, repository.ColUsername)
		}
	}
	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewBadRequestError(err.Error())
		}
		user.Bio = *in.Bio
		changed = append(changed, repository.ColBio)
	}
	if len(changed) == 0 {
		return user, nil
	}

	if err := s.users.Update(ctx, user, changed...); err != nil {
		return nil, err
	}
	return user, nil
}

// SetAvatar stores a new avatar pair, releasing the previous asset.
func (s *UserService) SetAvatar(ctx context.Context, actor policy.Identity, url, publicID string) (*models.User, error) {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(publicID) == "" {
		return nil, models.NewBadRequestError("No image data provided")
	}

	user, err := s.users.GetByIDForUpdate(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if user.ProfilePicID != "" && user.ProfilePicID != publicID {
		// the stored avatar is still ours until the update below
		release(ctx, s.posts, s.releaser, 1, models.MediaRef{PublicID: user.ProfilePicID, ResourceType: string(models.MediaImage)})
	}

	user.ProfilePic = url
	user.ProfilePicID = publicID
	if err := s.users.Update(ctx, user, repository.ColProfilePic, repository.ColProfilePicID); err != nil {
		return nil, err
	}
	return user, nil
}
