package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/studybridge/studybridge-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAppointmentRepositoryCreateIfFreeConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	scheduled := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("agent-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments")).
		WithArgs("agent-1", scheduled.Add(-time.Hour), scheduled.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.CreateIfFree(context.Background(), &models.Appointment{
		StudentID:   "stu-1",
		AgentID:     "agent-1",
		ScheduledAt: scheduled,
		Topic:       models.TopicUniversity,
		Details:     "admission consult",
	})
	require.ErrorIs(t, err, ErrWindowConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListPendingForAgent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "agent_id", "scheduled_at", "topic", "details", "status", "agent_message", "created_at", "updated_at", "student_name"}).
		AddRow("appt-1", "stu-1", "agent-1", time.Now(), models.TopicJob, "visa help", models.AppointmentPending, nil, time.Now(), time.Now(), "Ada Student")
	mock.ExpectQuery(`SELECT a\.id, .+ FROM appointments a\s+JOIN users su ON su\.id = a\.student_id\s+WHERE a\.agent_id = \$1 AND a\.status = \$2`).
		WithArgs("agent-1", models.AppointmentPending).
		WillReturnRows(rows)

	appts, err := repo.ListPendingForAgent(context.Background(), "agent-1")
	require.NoError(t, err)
	require.Len(t, appts, 1)
	require.Equal(t, "Ada Student", appts[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments WHERE id = $1")).
		WithArgs("appt-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "appt-404")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
