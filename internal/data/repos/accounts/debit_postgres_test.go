package accounts

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/forfeit-backend/internal/data/repos/testutil"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
)

// The debit must be a single guarded UPDATE so concurrent passes cannot overdraw.
func TestDebitBalanceSQLOnPostgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}

	mock.ExpectExec(`UPDATE "users" SET "balance_cents"=balance_cents - \$1,"updated_at"=\$2 WHERE .*id = \$3 AND balance_cents >= \$4`).
		WithArgs(int64(5000), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(5000)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewUserRepo(gdb, testutil.Logger(t))
	ok, err := repo.DebitBalance(dbctx.Context{Ctx: context.Background()}, uuid.New(), 5000)
	if err != nil {
		t.Fatalf("DebitBalance: %v", err)
	}
	if ok {
		t.Fatalf("zero rows affected must report insufficient balance")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
