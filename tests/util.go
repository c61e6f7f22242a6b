package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
)

// NewConfig returns a TEST configuration; media files go to t.TempDir().
func NewConfig(t *testing.T) *core.Config {
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.Storage.MediaDir = t.TempDir()
	conf.Storage.MediaURL = "/media"
	return conf
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateSubject(t *testing.T, repo course.Repository, title, slug string) course.Subject {
	t.Helper()

	subj, err := repo.CreateSubject(context.Background(), course.Subject{Title: title, Slug: slug})
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return subj
}

func CreateCourse(t *testing.T, repo course.Repository, owner user.User, subj course.Subject, title, slug string) course.Course {
	t.Helper()

	crs, err := repo.CreateCourse(context.Background(), course.Course{
		OwnerID:   owner.ID,
		SubjectID: subj.ID,
		Title:     title,
		Slug:      slug,
		Overview:  title + " overview",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return crs
}

// CreateModule inserts a module with the given order, bypassing the order rule.
func CreateModule(t *testing.T, repo course.Repository, crs course.Course, title string, order int) course.Module {
	t.Helper()

	mod, err := repo.CreateModule(context.Background(), course.Module{
		CourseID: crs.ID,
		Title:    title,
		Order:    &order,
	})
	if err != nil {
		t.Fatalf("createModule() failed: %v", err)
	}
	return mod
}

// CreateText inserts a text item and its content row with the given order.
func CreateText(t *testing.T, repo course.Repository, owner user.User, mod course.Module, title string, order int) course.Content {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()
	it, err := repo.CreateItem(ctx, course.Item{
		Kind:      course.KindText,
		OwnerID:   owner.ID,
		Title:     title,
		Content:   title + " content",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createText() failed: %v", err)
	}
	cnt, err := repo.CreateContent(ctx, course.Content{
		ModuleID: mod.ID,
		Kind:     course.KindText,
		ObjectID: it.ID,
		Order:    &order,
	})
	if err != nil {
		t.Fatalf("createText() failed: %v", err)
	}
	return cnt
}
