// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/logging"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/service"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
)

// DemoWorkspaceID is the workspace created by SeedData.
const DemoWorkspaceID = "ws-demo"

// SeedData fills an in-memory deployment with one workspace, a team with
// every role and a small dependency chain of tasks.
func SeedData(ctx context.Context, members *repository.MemoryMemberRepository, tasks service.TaskService) error {
	log := logging.For("seed")
	log.Info("Creating development data")

	// ============================================
	// TEAM
	// ============================================
	joined := time.Now().UTC().Add(-24 * time.Hour)
	team := []struct {
		userID string
		role   types.Role
		status types.MemberStatus
	}{
		{"user-marga", types.RoleOwner, types.MemberActive},
		{"user-bipin", types.RoleTeamLead, types.MemberActive},
		{"user-kritim", types.RoleCoordinator, types.MemberActive},
		{"user-prerak", types.RoleSpecialist, types.MemberActive},
		{"user-asha", types.RoleMarketingLead, types.MemberActive},
		{"user-ram", types.RoleGeneralVolunteer, types.MemberActive},
		{"user-sita", types.RoleVolunteerManager, types.MemberPending},
	}
	for i, m := range team {
		members.Put(&repository.TeamMember{
			UserID:      m.userID,
			WorkspaceID: DemoWorkspaceID,
			Role:        m.role,
			Status:      m.status,
			JoinedAt:    joined.Add(time.Duration(i) * time.Minute),
		})
	}

	// ============================================
	// TASKS
	// Venue booking gates the flyer print run, which gates distribution.
	// ============================================
	owner := "user-marga"
	venue, err := tasks.CreateTask(ctx, DemoWorkspaceID, owner, &service.CreateTaskRequest{
		Title:       "Book community hall",
		Description: "Confirm date and deposit with the hall manager",
		AssigneeIDs: []string{"user-kritim"},
	})
	if err != nil {
		return fmt.Errorf("seed venue task: %w", err)
	}
	flyers, err := tasks.CreateTask(ctx, DemoWorkspaceID, owner, &service.CreateTaskRequest{
		Title:       "Print flyers",
		Description: "500 copies, A5",
		DependsOn:   []string{venue.Task.ID},
		AssigneeIDs: []string{"user-asha"},
	})
	if err != nil {
		return fmt.Errorf("seed flyer task: %w", err)
	}
	if _, err := tasks.CreateTask(ctx, DemoWorkspaceID, owner, &service.CreateTaskRequest{
		Title:       "Distribute flyers",
		DependsOn:   []string{flyers.Task.ID},
		AssigneeIDs: []string{"user-ram", "user-prerak"},
	}); err != nil {
		return fmt.Errorf("seed distribution task: %w", err)
	}

	inProgress := types.StatusInProgress
	progress := 40
	if _, err := tasks.UpdateTask(ctx, venue.Task.ID, "user-kritim", &service.UpdateTaskRequest{Status: &inProgress}); err != nil {
		return fmt.Errorf("seed venue status: %w", err)
	}
	if _, err := tasks.UpdateTask(ctx, venue.Task.ID, "user-kritim", &service.UpdateTaskRequest{Progress: &progress}); err != nil {
		return fmt.Errorf("seed venue progress: %w", err)
	}
	if _, err := tasks.AddComment(ctx, venue.Task.ID, "user-kritim", "Hall manager replies by Friday"); err != nil {
		return fmt.Errorf("seed comment: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"workspaceId": DemoWorkspaceID,
		"members":     len(team),
		"tasks":       3,
	}).Info("Development data created")
	return nil
}
