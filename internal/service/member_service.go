package service

import (
	"context"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
)

// MemberService exposes read access to workspace memberships. Membership
// itself is managed elsewhere.
type MemberService interface {
	ListMembers(ctx context.Context, workspaceID, actorID string) ([]*repository.TeamMember, error)
	HasAccess(ctx context.Context, workspaceID, userID string) (bool, error)
}

type memberService struct {
	memberRepo repository.MemberRepository
}

func NewMemberService(memberRepo repository.MemberRepository) MemberService {
	return &memberService{memberRepo: memberRepo}
}

// ListMembers returns every membership of the workspace. Only active
// members may list.
func (s *memberService) ListMembers(ctx context.Context, workspaceID, actorID string) ([]*repository.TeamMember, error) {
	ok, err := s.HasAccess(ctx, workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ForbiddenError{ActorID: actorID, Action: "list members"}
	}
	members, err := s.memberRepo.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, &PersistenceError{Op: "list members", Err: err}
	}
	return members, nil
}

// HasAccess reports whether userID is an active member of the workspace.
func (s *memberService) HasAccess(ctx context.Context, workspaceID, userID string) (bool, error) {
	if workspaceID == "" || userID == "" {
		return false, nil
	}
	m, err := s.memberRepo.FindMember(ctx, workspaceID, userID)
	if err != nil {
		return false, &PersistenceError{Op: "lookup membership", Err: err}
	}
	return m != nil && m.Status == types.MemberActive && types.IsValidRole(m.Role), nil
}
