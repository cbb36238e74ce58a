package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"realtycrm/internal/config"
	"realtycrm/internal/database"
	"realtycrm/internal/model"
	"realtycrm/internal/user"
	"realtycrm/internal/util"
)

// Seeds a development database with one user per role, a project, leads with tasks, a leave
// request and two announcements. Every account gets the same generated password.
func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}
	cfg := config.NewConfig()
	if cfg.Server.IsProduction() {
		return errors.New("refusing to seed a production database")
	}

	db := database.NewDatabase()
	if err := db.Connect(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)); err != nil {
		return err
	}
	defer db.Close()

	password, err := user.GeneratePassword()
	if err != nil {
		return err
	}
	hash, err := user.HashPassword(password)
	if err != nil {
		return err
	}

	admin, err := db.CreateUser(ctx, database.CreateUserParams{
		LoginID: "admin", Name: "Admin User", Email: "admin@example.com", Role: model.RoleAdmin, PasswordHash: hash,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	manager, err := db.CreateUser(ctx, database.CreateUserParams{
		LoginID: "mira", Name: "Mira Kapoor", Email: "mira@example.com", Role: model.RoleManager, PasswordHash: hash,
	})
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	var staff []model.User
	for _, s := range []struct{ login, name string }{{"uma", "Uma Shah"}, {"ravi", "Ravi Iyer"}} {
		u, err := db.CreateUser(ctx, database.CreateUserParams{
			LoginID:      s.login,
			Name:         s.name,
			Role:         model.RoleStaff,
			ManagerID:    util.Some(manager.ID),
			PasswordHash: hash,
		})
		if err != nil {
			return fmt.Errorf("failed to create staff %s: %w", s.login, err)
		}
		staff = append(staff, u)
	}

	project, err := db.CreateProject(ctx, database.CreateProjectParams{
		Name:        "Palm Grove Residences",
		Description: "Two and three bedroom apartments near the metro.",
		Location:    "Whitefield",
		Developer:   "Greenline Builders",
		PriceMin:    7500000,
		PriceMax:    14000000,
		Status:      model.ProjectStatusOngoing,
		Amenities:   []string{"Pool", "Gym", "Clubhouse"},
		CreatedBy:   admin.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	now := time.Now().UTC()
	for i, owner := range staff {
		lead, err := db.CreateLead(ctx, database.CreateLeadParams{
			Name:            fmt.Sprintf("Prospect %d", i+1),
			Phone:           fmt.Sprintf("+91 90000 0000%d", i+1),
			PropertyType:    "Apartment",
			Location:        project.Location,
			BudgetMin:       8000000,
			BudgetMax:       12000000,
			Bedrooms:        2 + i,
			Source:          "Website",
			Status:          model.LeadStatusPending,
			FollowUpDate:    util.Some(now.AddDate(0, 0, i+1)),
			CreatedBy:       owner.ID,
			AssignedProject: util.Some(project.ID),
			Notes: []model.LeadNote{{
				Text: "Enquired through the website form.", AuthorID: owner.ID, AuthorName: owner.Name, CreatedAt: now,
			}},
		})
		if err != nil {
			return fmt.Errorf("failed to create lead: %w", err)
		}
		if _, err := db.CreateTask(ctx, database.CreateTaskParams{
			LeadID:     lead.ID,
			LeadName:   lead.Name,
			Title:      "Schedule site visit",
			Status:     model.TaskStatusPending,
			AssignedTo: owner.ID,
			DueDate:    util.Some(now.AddDate(0, 0, 3)),
			CreatedBy:  owner.ID,
		}); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
	}

	if _, err := db.CreateLeave(ctx, database.CreateLeaveParams{
		UserID:    staff[0].ID,
		UserName:  staff[0].Name,
		UserRole:  staff[0].Role,
		Type:      model.LeaveTypeCasual,
		StartDate: now.AddDate(0, 0, 7),
		EndDate:   now.AddDate(0, 0, 8),
		Reason:    "Family function",
	}); err != nil {
		return fmt.Errorf("failed to create leave request: %w", err)
	}

	for _, a := range []database.CreateAnnouncementParams{
		{Title: "Welcome", Message: "The CRM is live. Log every call as a lead note.", Priority: model.PriorityMedium, CreatedBy: admin.ID},
		{Title: "Site visit weekend", Message: "All staff at Palm Grove on Saturday.", Priority: model.PriorityHigh, TargetRoles: []model.Role{model.RoleStaff}, CreatedBy: admin.ID, ExpiresAt: util.Some(now.AddDate(0, 0, 7))},
	} {
		if _, err := db.CreateAnnouncement(ctx, a); err != nil {
			return fmt.Errorf("failed to create announcement: %w", err)
		}
	}

	fmt.Println("Seed data created. Log in as admin, mira, uma or ravi with password:", password)
	return nil
}
