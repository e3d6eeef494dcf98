package repository

import (
	"testing"

	"gorm.io/gorm"

	"github.com/dumeirei/referral-settlement/internal/testutil"
)

func setupTestDB(t *testing.T) *gorm.DB {
	return testutil.NewSQLite(t)
}
