package service

import (
	"context"
	"strings"

	"devsnippet/internal/models"
	"devsnippet/internal/notifications"
	"devsnippet/internal/policy"
	"devsnippet/internal/repository"
	"devsnippet/internal/validation"
)

// dashboardRecent is how many users and posts the dashboard lists.
const dashboardRecent = 5

type AdminService struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	releaser MediaReleaser
	events   EventPublisher
}

// AdminUpdateUserInput is a partial update of another account.
type AdminUpdateUserInput struct {
	Username *string      `json:"username"`
	Email    *string      `json:"email"`
	Bio      *string      `json:"bio"`
	Role     *models.Role `json:"role"`
}

func NewAdminService(users repository.UserRepository, posts repository.PostRepository, releaser MediaReleaser, events EventPublisher) *AdminService {
	return &AdminService{users: users, posts: posts, releaser: releaser, events: events}
}

func (s *AdminService) ListUsers(ctx context.Context, actor policy.Identity, page Page) ([]models.User, error) {
	if err := policy.RequireModerator(actor); err != nil {
		return nil, err
	}
	return s.users.List(ctx, page.Limit, page.Offset)
}

func (s *AdminService) GetUser(ctx context.Context, actor policy.Identity, id string) (*models.UserDetail, error) {
	if err := policy.RequireModerator(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.posts.CountByAuthor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &models.UserDetail{User: *user, PostsCount: count}, nil
}

func (s *AdminService) UpdateUser(ctx context.Context, actor policy.Identity, id string, in AdminUpdateUserInput) (*models.User, error) {
	if err := policy.RequireModerator(actor); err != nil {
		return nil, err
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, models.NewBadRequestError("Invalid role")
		}
		if err := policy.CheckRoleChange(actor, id, *in.Role); err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewBadRequestError(err.Error())
		}
		user.Username = username
		changed = append(changed, repository.ColUsername)
	}
	if in.Email != nil {
		email := models.NormalizeEmail(*in.Email)
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewBadRequestError(err.Error())
		}
		user.Email = email
		changed = append(changed, repository.ColEmail)
	}
	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewBadRequestError(err.Error())
		}
		user.Bio = *in.Bio
		changed = append(changed, repository.ColBio)
	}
	if in.Role != nil {
		user.Role = *in.Role
		changed = append(changed, repository.ColRole)
	}
	if len(changed) == 0 {
		return user, nil
	}

	if err := s.users.Update(ctx, user, changed...); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes the account with its posts and likes, then releases its media.
func (s *AdminService) DeleteUser(ctx context.Context, actor policy.Identity, id string) error {
	if err := policy.RequireModerator(actor); err != nil {
		return err
	}
	if err := policy.CheckUserDeletion(actor, id); err != nil {
		return err
	}

	deleted, err := s.users.DeleteWithContent(ctx, id)
	if err != nil {
		return err
	}

	release(ctx, s.posts, s.releaser, 0, deleted.Media...)
	for _, postID := range deleted.PostIDs {
		publish(ctx, s.events, notifications.NewPostEvent(notifications.EventPostDeleted, &models.Post{ID: postID}, actor.ID))
	}
	return nil
}

func (s *AdminService) Dashboard(ctx context.Context, actor policy.Identity) (*models.Dashboard, error) {
	if err := policy.RequireModerator(actor); err != nil {
		return nil, err
	}

	var (
		stats models.DashboardStats
		err   error
	)
	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalPosts, err = s.posts.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalAdmins, err = s.users.CountByRole(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	if stats.TotalRegularUsers, err = s.users.CountByRole(ctx, models.RoleUser); err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx, dashboardRecent, 0)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.List(ctx, dashboardRecent, 0)
	if err != nil {
		return nil, err
	}

	recent := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		recent = append(recent, *p)
	}
	if users == nil {
		users = []models.User{}
	}

	return &models.Dashboard{Stats: stats, RecentUsers: users, RecentPosts: recent}, nil
}
