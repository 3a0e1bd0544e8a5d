// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/db"
	"github.com/taskboard-dev/taskboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory SQLite database with foreign keys enabled
// and all tables migrated. A single connection serializes transactions the
// same way row locks would on PostgreSQL.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())

	gdb, err := db.Open(sqlite.Open(dsn))
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(gdb), "failed to migrate test database")

	t.Cleanup(func() { _ = sqlDB.Close() })

	return gdb
}

// CreateUser inserts a password-less user named username.
func CreateUser(t *testing.T, gdb *gorm.DB, username string) models.User {
	t.Helper()

	user := models.User{
		Username: username,
		Name:     username,
		Email:    username + "@example.com",
	}
	require.NoError(t, gdb.Create(&user).Error)

	return user
}

// CreateProject inserts a project owned by owner together with the owner
// membership.
func CreateProject(t *testing.T, gdb *gorm.DB, owner models.User, name string) models.Project {
	t.Helper()

	project := models.Project{Name: name, OwnerID: owner.ID}
	require.NoError(t, gdb.Create(&project).Error)
	AddMember(t, gdb, project, owner, models.RoleOwner)

	return project
}

func AddMember(t *testing.T, gdb *gorm.DB, project models.Project, user models.User, role string) {
	t.Helper()

	require.NoError(t, gdb.Create(&models.ProjectMembership{
		ProjectID: project.ID,
		UserID:    user.ID,
		Role:      role,
	}).Error)
}

func CreateTask(t *testing.T, gdb *gorm.DB, project models.Project, creator models.User, title, status string) models.Task {
	t.Helper()

	task := models.Task{
		ProjectID: project.ID,
		CreatorID: creator.ID,
		Title:     title,
		Status:    status,
		Labels:    models.EncodeLabels(nil),
	}
	require.NoError(t, gdb.Create(&task).Error)

	return task
}
