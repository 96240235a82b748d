package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-uks-api/internal/models"
	appErrors "github.com/noah-isme/sma-uks-api/pkg/errors"
)

type mockStudentRepo struct {
	students   map[string]*models.Student
	lastFilter models.StudentFilter
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.lastFilter = filter
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]*models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = student
	return nil
}

func newStudentService(repo *mockStudentRepo) *StudentService {
	return NewStudentService(repo, nil, zap.NewNop())
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newStudentService(repo)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		NIS:       "1001",
		FullName:  "Ani",
		Gender:    "F",
		BirthDate: time.Date(2012, 3, 4, 0, 0, 0, 0, time.UTC),
		ClassName: "6A",
	})
	require.NoError(t, err)
	assert.True(t, student.Active)
	assert.NotEmpty(t, student.ID)
}

func TestStudentServiceCreateValidatesPayload(t *testing.T) {
	svc := newStudentService(&mockStudentRepo{})

	_, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Ani"})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc := newStudentService(&mockStudentRepo{})

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestStudentServiceUpdateCanDeactivate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{
		"s1": {ID: "s1", NIS: "1001", FullName: "Ani", Gender: "F", BirthDate: time.Now(), ClassName: "6A", Active: true},
	}}
	svc := newStudentService(repo)

	student, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{
		NIS:       "1001",
		FullName:  "Ani",
		Gender:    "F",
		BirthDate: time.Now(),
		ClassName: "7A",
		Active:    false,
	})
	require.NoError(t, err)
	assert.False(t, student.Active)
	assert.Equal(t, "7A", student.ClassName)
	assert.False(t, repo.students["s1"].Active)
}

func TestStudentServiceListPassesFilter(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{
		"s1": {ID: "s1", FullName: "Ani", ClassName: "6A", Active: true},
	}}
	svc := newStudentService(repo)

	students, pagination, err := svc.List(context.Background(), models.StudentFilter{ClassName: "6A", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, "6A", repo.lastFilter.ClassName)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 10, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}
