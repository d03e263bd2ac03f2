package core

import (
	"context"
	"regexp"
	"strings"
	"time"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

type CreateUserInput struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Bio         string `json:"bio"`
	Role        Role   `json:"role"`
}

type UpdateUserInput struct {
	DisplayName *string     `json:"display_name"`
	AvatarURL   *string     `json:"avatar_url"`
	Bio         *string     `json:"bio"`
	Role        *Role       `json:"role"`
	Status      *UserStatus `json:"status"`
}

func NormalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return "", BadInput("invalid username",
			fieldError("username", "must be 3-32 characters of a-z, 0-9, '_', '.' or '-'", username))
	}
	return username, nil
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (user User, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"username": in.Username}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_user", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return User{}, err
	}
	if err = s.requireStore(s.users, "user"); err != nil {
		return User{}, err
	}
	username, err := NormalizeUsername(in.Username)
	if err != nil {
		return User{}, err
	}
	role := in.Role
	if strings.TrimSpace(string(role)) == "" {
		role = RoleApplicant
	}
	if !role.Valid() {
		err = BadInput("invalid role", fieldError("role", "must be applicant, member or admin", role))
		return User{}, err
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}

	now := s.now()
	user, err = s.users.Create(ctx, User{
		ID:          s.newID(),
		Username:    username,
		DisplayName: displayName,
		AvatarURL:   strings.TrimSpace(in.AvatarURL),
		Bio:         strings.TrimSpace(in.Bio),
		Role:        role,
		Status:      UserStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		err = s.mapError(err)
		return User{}, err
	}
	fields["user_id"] = user.ID
	s.emit(ctx, EventUserCreated, map[string]any{"user": user})
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (user User, err error) {
	if err = s.requireStore(s.users, "user"); err != nil {
		return User{}, err
	}
	if id, err = requireID("id", id); err != nil {
		return User{}, err
	}
	user, err = s.users.Get(ctx, id)
	if err != nil {
		return User{}, s.mapError(err)
	}
	return user, nil
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (User, error) {
	if err := s.requireStore(s.users, "user"); err != nil {
		return User{}, err
	}
	normalized, err := NormalizeUsername(username)
	if err != nil {
		return User{}, err
	}
	user, err := s.users.GetByUsername(ctx, normalized)
	if err != nil {
		return User{}, s.mapError(err)
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, filter UserFilter) (Page[User], error) {
	if err := s.requireStore(s.users, "user"); err != nil {
		return Page[User]{}, err
	}
	filter.PageRequest = filter.PageRequest.Normalize()
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Role != "" && !filter.Role.Valid() {
		return Page[User]{}, BadInput("invalid role filter", fieldError("role", "unknown role", filter.Role))
	}
	page, err := s.users.List(ctx, filter)
	if err != nil {
		return Page[User]{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (user User, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_user", err, fields)
	}()

	principal, err := requireSelfOrPrivileged(ctx, id)
	if err != nil {
		return User{}, err
	}
	if (in.Role != nil || in.Status != nil) && !principal.Privileged() {
		err = Forbidden("only admin or service callers may change role or status")
		return User{}, err
	}
	user, err = s.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			err = BadInput("display_name must not be empty", fieldError("display_name", "required", name))
			return User{}, err
		}
		user.DisplayName = name
	}
	if in.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*in.AvatarURL)
	}
	if in.Bio != nil {
		user.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			err = BadInput("invalid role", fieldError("role", "must be applicant, member or admin", *in.Role))
			return User{}, err
		}
		user.Role = *in.Role
	}
	if in.Status != nil {
		if *in.Status != UserStatusActive && *in.Status != UserStatusSuspended {
			err = BadInput("invalid status", fieldError("status", "must be active or suspended", *in.Status))
			return User{}, err
		}
		user.Status = *in.Status
	}
	user.UpdatedAt = s.now()

	user, err = s.users.Update(ctx, user)
	if err != nil {
		err = s.mapError(err)
		return User{}, err
	}
	s.emit(ctx, EventUserUpdated, map[string]any{"user": user})
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_user", err, fields)
	}()

	if _, err = requireSelfOrPrivileged(ctx, id); err != nil {
		return err
	}
	if err = s.requireStore(s.users, "user"); err != nil {
		return err
	}
	if err = s.users.SoftDelete(ctx, strings.TrimSpace(id)); err != nil {
		err = s.mapError(err)
		return err
	}
	s.emit(ctx, EventUserDeleted, map[string]any{"user_id": id})
	return nil
}

// setUserRole changes a user's role on behalf of the system.
func (s *Service) setUserRole(ctx context.Context, userID string, role Role) (User, error) {
	ctx = systemContext(ctx)
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if user.Role == role {
		return user, nil
	}
	user.Role = role
	user.UpdatedAt = s.now()
	return s.users.Update(ctx, user)
}
