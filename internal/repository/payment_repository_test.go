package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/studybridge/studybridge-api/internal/models"
)

func TestPaymentRepositoryListForAgent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "agent_id", "amount", "paid_on", "description", "institution", "notes", "slip_path", "status", "created_at", "updated_at", "student_name"}).
		AddRow("pay-1", "stu-1", "agent-1", 1500.0, time.Now(), "tuition deposit", "TU Delft", nil, nil, models.PaymentPending, time.Now(), time.Now(), "Ada Student")
	mock.ExpectQuery(`SELECT p\.id, .+ FROM payments p\s+JOIN users su ON su\.id = p\.student_id\s+WHERE p\.agent_id = \$1`).
		WithArgs("agent-1").
		WillReturnRows(rows)

	payments, err := repo.ListForAgent(context.Background(), "agent-1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, "Ada Student", payments[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("pay-1", models.PaymentApproved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "pay-1", models.PaymentApproved)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
