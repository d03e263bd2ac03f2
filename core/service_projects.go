package core

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CreateProjectInput struct {
	OwnerID     string   `json:"owner_id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	RepoURL     string   `json:"repo_url"`
	Tags        []string `json:"tags"`
}

type UpdateProjectInput struct {
	Name        *string        `json:"name"`
	Slug        *string        `json:"slug"`
	Description *string        `json:"description"`
	URL         *string        `json:"url"`
	RepoURL     *string        `json:"repo_url"`
	Tags        []string       `json:"tags"`
	Status      *ProjectStatus `json:"status"`
}

func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (project Project, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"name": in.Name}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_project", err, fields)
	}()

	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return Project{}, err
	}
	ownerID := principal.UserID
	if explicit := strings.TrimSpace(in.OwnerID); explicit != "" && explicit != ownerID {
		if !principal.Privileged() {
			err = Forbidden("only admin or service callers may create projects for another user")
			return Project{}, err
		}
		ownerID = explicit
	}
	if ownerID, err = requireID("owner_id", ownerID); err != nil {
		return Project{}, err
	}
	if err = s.requireStore(s.projects, "project"); err != nil {
		return Project{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		err = BadInput("name is required", fieldError("name", "required", name))
		return Project{}, err
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		err = BadInput("slug could not be derived from name", fieldError("slug", "required", in.Slug))
		return Project{}, err
	}
	if err = validateOptionalURL("url", in.URL); err != nil {
		return Project{}, err
	}
	if err = validateOptionalURL("repo_url", in.RepoURL); err != nil {
		return Project{}, err
	}

	now := s.now()
	project, err = s.projects.Create(ctx, Project{
		ID:          s.newID(),
		OwnerID:     ownerID,
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
		URL:         strings.TrimSpace(in.URL),
		RepoURL:     strings.TrimSpace(in.RepoURL),
		Tags:        normalizeTags(in.Tags),
		Status:      ProjectActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		err = s.mapError(err)
		return Project{}, err
	}
	fields["project_id"] = project.ID
	s.emit(ctx, EventProjectCreated, map[string]any{"project": project})
	return project, nil
}

// GetProject resolves a project by id or slug.
func (s *Service) GetProject(ctx context.Context, idOrSlug string) (Project, error) {
	if err := s.requireStore(s.projects, "project"); err != nil {
		return Project{}, err
	}
	key, err := requireID("id", idOrSlug)
	if err != nil {
		return Project{}, err
	}
	var project Project
	if _, parseErr := uuid.Parse(key); parseErr == nil {
		project, err = s.projects.Get(ctx, key)
	} else {
		project, err = s.projects.GetBySlug(ctx, Slugify(key))
	}
	if err != nil {
		return Project{}, s.mapError(err)
	}
	return project, nil
}

func (s *Service) ListProjects(ctx context.Context, filter ProjectFilter) (Page[Project], error) {
	if err := s.requireStore(s.projects, "project"); err != nil {
		return Page[Project]{}, err
	}
	switch filter.Status {
	case "", ProjectActive, ProjectArchived:
	default:
		return Page[Project]{}, BadInput("invalid status filter", fieldError("status", "must be active or archived", filter.Status))
	}
	filter.Tag = strings.ToLower(strings.TrimSpace(filter.Tag))
	filter.Query = strings.TrimSpace(filter.Query)
	filter.PageRequest = filter.PageRequest.Normalize()
	page, err := s.projects.List(ctx, filter)
	if err != nil {
		return Page[Project]{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) UpdateProject(ctx context.Context, idOrSlug string, in UpdateProjectInput) (project Project, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"project": idOrSlug}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_project", err, fields)
	}()

	project, err = s.GetProject(ctx, idOrSlug)
	if err != nil {
		return Project{}, err
	}
	fields["project_id"] = project.ID
	if _, err = requireSelfOrPrivileged(ctx, project.OwnerID); err != nil {
		return Project{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			err = BadInput("name must not be empty", fieldError("name", "required", name))
			return Project{}, err
		}
		project.Name = name
	}
	if in.Slug != nil {
		slug := Slugify(*in.Slug)
		if slug == "" {
			err = BadInput("invalid slug", fieldError("slug", "must contain letters or digits", *in.Slug))
			return Project{}, err
		}
		project.Slug = slug
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}
	if in.URL != nil {
		if err = validateOptionalURL("url", *in.URL); err != nil {
			return Project{}, err
		}
		project.URL = strings.TrimSpace(*in.URL)
	}
	if in.RepoURL != nil {
		if err = validateOptionalURL("repo_url", *in.RepoURL); err != nil {
			return Project{}, err
		}
		project.RepoURL = strings.TrimSpace(*in.RepoURL)
	}
	if in.Tags != nil {
		project.Tags = normalizeTags(in.Tags)
	}
	if in.Status != nil {
		if *in.Status != ProjectActive && *in.Status != ProjectArchived {
			err = BadInput("invalid status", fieldError("status", "must be active or archived", *in.Status))
			return Project{}, err
		}
		project.Status = *in.Status
	}
	project.UpdatedAt = s.now()

	project, err = s.projects.Update(ctx, project)
	if err != nil {
		err = s.mapError(err)
		return Project{}, err
	}
	s.emit(ctx, EventProjectUpdated, map[string]any{"project": project})
	return project, nil
}

func (s *Service) DeleteProject(ctx context.Context, idOrSlug string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"project": idOrSlug}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_project", err, fields)
	}()

	project, err := s.GetProject(ctx, idOrSlug)
	if err != nil {
		return err
	}
	fields["project_id"] = project.ID
	if _, err = requireSelfOrPrivileged(ctx, project.OwnerID); err != nil {
		return err
	}
	if err = s.projects.Delete(ctx, project.ID); err != nil {
		err = s.mapError(err)
		return err
	}
	s.emit(ctx, EventProjectDeleted, map[string]any{"project_id": project.ID, "slug": project.Slug})
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		tag = Slugify(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func validateOptionalURL(field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return validateURL(field, value)
}

func validateURL(field, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return BadInput("invalid "+field, fieldError(field, "must be an absolute http(s) URL", value))
	}
	return nil
}
