package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalayaone/profile-api/internal/models"
)

func newProvisionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func createSpec() CreateStudentSpec {
	return CreateStudentSpec{
		Student: models.Student{
			SchoolID:        "school-1",
			AdmissionNumber: "A100",
			FirstName:       "John",
			LastName:        "Adams",
			Gender:          "MALE",
			Email:           "john@example.com",
			Phone:           "+621234567",
			Status:          models.StudentStatusProvisioned,
			AdmissionDate:   time.Now(),
		},
		Guardians: []models.Guardian{
			{FullName: "Jane Adams", Relation: "MOTHER"},
		},
		Enrollment: models.Enrollment{
			ClassID:      "class-1",
			SectionID:    "section-1",
			AcademicYear: "2026/2027",
		},
		Documents: []models.Document{
			{Name: "birth-certificate.pdf", URL: "https://files.example.com/bc.pdf"},
		},
	}
}

func TestProvisionRepositoryCreateStudentTx(t *testing.T) {
	db, mock, cleanup := newProvisionRepoMock(t)
	defer cleanup()
	repo := NewProvisionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO guardians").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_guardians").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	student, err := repo.CreateStudentTx(context.Background(), createSpec())
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.True(t, student.Active)
	assert.Equal(t, models.StudentStatusProvisioned, student.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisionRepositoryCreateStudentTxRollsBackOnConflict(t *testing.T) {
	db, mock, cleanup := newProvisionRepoMock(t)
	defer cleanup()
	repo := NewProvisionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.CreateStudentTx(context.Background(), createSpec())
	require.Error(t, err)

	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisionRepositoryCreateStudentTxRollsBackOnChildFailure(t *testing.T) {
	db, mock, cleanup := newProvisionRepoMock(t)
	defer cleanup()
	repo := NewProvisionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO guardians").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.CreateStudentTx(context.Background(), createSpec())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func acceptSpec() AcceptApplicationSpec {
	return AcceptApplicationSpec{
		StudentID:       "student-9",
		SchoolID:        "school-1",
		UserID:          "identity-1",
		AdmissionNumber: "A200",
		AdmissionDate:   time.Now(),
		Enrollment: models.Enrollment{
			ClassID:      "class-1",
			SectionID:    "section-1",
			AcademicYear: "2026/2027",
		},
	}
}

func acceptedRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "school_id", "user_id", "admission_number", "first_name", "last_name", "gender", "birth_date", "email", "phone", "address", "status", "active", "admission_date", "created_at", "updated_at"}).
		AddRow("student-9", "school-1", "identity-1", "A200", "Mary", "Major", "FEMALE", now, "mary@example.com", "+62987654", "", "ACCEPTED", true, now, now, now)
}

func TestProvisionRepositoryAcceptApplicationTx(t *testing.T) {
	db, mock, cleanup := newProvisionRepoMock(t)
	defer cleanup()
	repo := NewProvisionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE students").WillReturnRows(acceptedRows())
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	student, err := repo.AcceptApplicationTx(context.Background(), acceptSpec())
	require.NoError(t, err)
	assert.Equal(t, models.StudentStatusAccepted, student.Status)
	require.NotNil(t, student.UserID)
	assert.Equal(t, "identity-1", *student.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisionRepositoryAcceptApplicationTxNoLongerPending(t *testing.T) {
	db, mock, cleanup := newProvisionRepoMock(t)
	defer cleanup()
	repo := NewProvisionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE students").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.AcceptApplicationTx(context.Background(), acceptSpec())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
