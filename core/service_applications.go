package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type SubmitApplicationInput struct {
	ApplicantID string   `json:"applicant_id"`
	Motivation  string   `json:"motivation"`
	Links       []string `json:"links"`
}

type CastVoteInput struct {
	ApplicationID string       `json:"application_id"`
	Decision      VoteDecision `json:"decision"`
	Comment       string       `json:"comment"`
}

// VoteResult is the outcome of a vote, including any resulting decision.
type VoteResult struct {
	Vote        Vote        `json:"vote"`
	Tally       Tally       `json:"tally"`
	Application Application `json:"application"`
}

type DecideApplicationInput struct {
	ApplicationID string            `json:"application_id"`
	Status        ApplicationStatus `json:"status"`
}

func (s *Service) SubmitApplication(ctx context.Context, in SubmitApplicationInput) (application Application, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "submit_application", err, fields)
	}()

	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return Application{}, err
	}
	applicantID := principal.UserID
	if explicit := strings.TrimSpace(in.ApplicantID); explicit != "" && explicit != applicantID {
		if !principal.Privileged() {
			err = Forbidden("only admin or service callers may apply on behalf of another user")
			return Application{}, err
		}
		applicantID = explicit
	}
	if applicantID, err = requireID("applicant_id", applicantID); err != nil {
		return Application{}, err
	}
	fields["user_id"] = applicantID
	if err = s.requireStore(s.applications, "application"); err != nil {
		return Application{}, err
	}
	motivation := strings.TrimSpace(in.Motivation)
	if motivation == "" {
		err = BadInput("motivation is required", fieldError("motivation", "required", motivation))
		return Application{}, err
	}

	applicant, err := s.GetUser(ctx, applicantID)
	if err != nil {
		return Application{}, err
	}
	if applicant.Role == RoleMember || applicant.Role == RoleAdmin {
		err = Conflict("user is already a member")
		return Application{}, err
	}
	pending, err := s.applications.List(ctx, ApplicationFilter{
		Status:      ApplicationPending,
		ApplicantID: applicantID,
		PageRequest: PageRequest{Page: 1, PerPage: 1},
	})
	if err != nil {
		err = s.mapError(err)
		return Application{}, err
	}
	if pending.Total > 0 {
		err = Conflict("a pending application already exists")
		return Application{}, err
	}

	now := s.now()
	application, err = s.applications.Create(ctx, Application{
		ID:          s.newID(),
		ApplicantID: applicantID,
		Status:      ApplicationPending,
		Motivation:  motivation,
		Links:       cleanStrings(in.Links),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		err = s.mapError(err)
		return Application{}, err
	}
	fields["application_id"] = application.ID
	if applicant.Role != RoleApplicant {
		if _, err = s.setUserRole(ctx, applicantID, RoleApplicant); err != nil {
			err = s.mapError(err)
			return Application{}, err
		}
	}
	s.emit(ctx, EventApplicationSubmitted, map[string]any{"application": application})
	return application, nil
}

func (s *Service) GetApplication(ctx context.Context, id string) (Application, error) {
	if err := s.requireStore(s.applications, "application"); err != nil {
		return Application{}, err
	}
	id, err := requireID("id", id)
	if err != nil {
		return Application{}, err
	}
	application, err := s.applications.Get(ctx, id)
	if err != nil {
		return Application{}, s.mapError(err)
	}
	return application, nil
}

func (s *Service) ListApplications(ctx context.Context, filter ApplicationFilter) (Page[Application], error) {
	if err := s.requireStore(s.applications, "application"); err != nil {
		return Page[Application]{}, err
	}
	filter.PageRequest = filter.PageRequest.Normalize()
	switch filter.Status {
	case "", ApplicationPending, ApplicationApproved, ApplicationRejected, ApplicationWithdrawn:
	default:
		return Page[Application]{}, BadInput("invalid status filter", fieldError("status", "unknown status", filter.Status))
	}
	page, err := s.applications.List(ctx, filter)
	if err != nil {
		return Page[Application]{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) CastVote(ctx context.Context, in CastVoteInput) (result VoteResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"application_id": in.ApplicationID, "decision": string(in.Decision)}
	defer func() {
		s.observeOperation(ctx, startedAt, "cast_vote", err, fields)
	}()

	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return VoteResult{}, err
	}
	if !principal.CanVote() {
		err = Forbidden("only members may vote")
		return VoteResult{}, err
	}
	if !in.Decision.Valid() {
		err = BadInput("invalid decision", fieldError("decision", "must be approve, reject or abstain", in.Decision))
		return VoteResult{}, err
	}
	application, err := s.GetApplication(ctx, in.ApplicationID)
	if err != nil {
		return VoteResult{}, err
	}
	if application.Status != ApplicationPending {
		err = Conflict("application is no longer pending")
		return VoteResult{}, err
	}
	if application.ApplicantID == principal.UserID {
		err = Forbidden("applicants may not vote on their own application")
		return VoteResult{}, err
	}

	vote := Vote{
		ID:            s.newID(),
		ApplicationID: application.ID,
		VoterID:       principal.UserID,
		Decision:      in.Decision,
		Comment:       strings.TrimSpace(in.Comment),
		CreatedAt:     s.now(),
	}
	tally, err := s.applications.CastVote(ctx, vote)
	if err != nil {
		err = s.mapError(err)
		return VoteResult{}, err
	}
	application.Approvals = tally.Approvals
	application.Rejections = tally.Rejections
	application.Abstentions = tally.Abstentions
	s.emit(ctx, EventVoteCast, map[string]any{"vote": vote, "tally": tally})

	switch {
	case tally.Approvals >= s.config.Applications.approvalThreshold():
		application, err = s.decide(ctx, application, ApplicationApproved)
	case tally.Rejections >= s.config.Applications.rejectionThreshold():
		application, err = s.decide(ctx, application, ApplicationRejected)
	}
	if goerrors.IsCategory(err, goerrors.CategoryConflict) {
		// a concurrent vote already settled the application
		application, err = s.GetApplication(ctx, vote.ApplicationID)
	}
	if err != nil {
		return VoteResult{}, err
	}
	return VoteResult{Vote: vote, Tally: tally, Application: application}, nil
}

func (s *Service) ListVotes(ctx context.Context, applicationID string) ([]Vote, error) {
	if _, err := requireAuthenticated(ctx); err != nil {
		return nil, err
	}
	application, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	votes, err := s.applications.ListVotes(ctx, application.ID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if votes == nil {
		votes = []Vote{}
	}
	return votes, nil
}

func (s *Service) WithdrawApplication(ctx context.Context, id string) (application Application, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"application_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "withdraw_application", err, fields)
	}()

	application, err = s.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	principal, err := requireAuthenticated(ctx)
	if err != nil {
		return Application{}, err
	}
	if principal.UserID != application.ApplicantID && principal.Role != RoleAdmin {
		err = Forbidden("only the applicant may withdraw an application")
		return Application{}, err
	}
	if application.Status != ApplicationPending {
		err = Conflict("application is no longer pending")
		return Application{}, err
	}
	application, err = s.applications.UpdateStatus(ctx, application.ID, ApplicationWithdrawn, s.now())
	if err != nil {
		err = s.mapError(err)
		return Application{}, err
	}
	s.emit(ctx, EventApplicationWithdrawn, map[string]any{"application": application})
	return application, nil
}

// DecideApplication lets an admin or service caller override the vote.
func (s *Service) DecideApplication(ctx context.Context, in DecideApplicationInput) (application Application, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"application_id": in.ApplicationID, "status": string(in.Status)}
	defer func() {
		s.observeOperation(ctx, startedAt, "decide_application", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return Application{}, err
	}
	if in.Status != ApplicationApproved && in.Status != ApplicationRejected {
		err = BadInput("invalid decision", fieldError("status", "must be approved or rejected", in.Status))
		return Application{}, err
	}
	application, err = s.GetApplication(ctx, in.ApplicationID)
	if err != nil {
		return Application{}, err
	}
	if application.Status != ApplicationPending {
		err = Conflict("application is no longer pending")
		return Application{}, err
	}
	return s.decide(ctx, application, in.Status)
}

func (s *Service) DeleteApplication(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"application_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_application", err, fields)
	}()

	if _, err = requirePrivileged(ctx); err != nil {
		return err
	}
	application, err := s.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	if err = s.applications.Delete(ctx, application.ID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// decide finalizes a pending application and promotes approved applicants.
func (s *Service) decide(ctx context.Context, application Application, status ApplicationStatus) (Application, error) {
	decided, err := s.applications.UpdateStatus(systemContext(ctx), application.ID, status, s.now())
	if err != nil {
		return Application{}, s.mapError(err)
	}
	switch status {
	case ApplicationApproved:
		if _, err := s.setUserRole(ctx, decided.ApplicantID, RoleMember); err != nil {
			return Application{}, s.mapError(err)
		}
		s.emit(ctx, EventApplicationApproved, map[string]any{"application": decided})
	case ApplicationRejected:
		s.emit(ctx, EventApplicationRejected, map[string]any{"application": decided})
	}
	return decided, nil
}

func cleanStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
