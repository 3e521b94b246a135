package orm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type row struct {
	ID   int64
	Hash string `gorm:"uniqueIndex"`
}

func TestNewSQLite_TranslatesDuplicateKey(t *testing.T) {
	db, err := NewSQLite("")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&row{}))

	require.NoError(t, db.Create(&row{Hash: "a"}).Error)
	err = db.Create(&row{Hash: "a"}).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(&Config{Type: "oracle"})
	assert.Error(t, err)
}

func TestApplyPagination(t *testing.T) {
	db, err := NewSQLite("")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&row{}))
	for _, h := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, db.Create(&row{Hash: h}).Error)
	}

	tests := []struct {
		name        string
		page, limit int
		want        []string
	}{
		{"第一页", 1, 2, []string{"a", "b"}},
		{"最后一页不满", 3, 2, []string{"e"}},
		{"不分页", 0, 0, []string{"a", "b", "c", "d", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []row
			require.NoError(t, ApplyPagination(db.Order("id"), tt.page, tt.limit).Find(&rows).Error)
			got := make([]string, 0, len(rows))
			for _, r := range rows {
				got = append(got, r.Hash)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDSN(t *testing.T) {
	got, err := normalizeDSN("root:pwd@tcp(127.0.0.1:3306)/ledger?charset=utf8mb4")
	require.NoError(t, err)
	assert.Contains(t, got, "parseTime=true")
	assert.Contains(t, got, "clientFoundRows=true")
	assert.Contains(t, got, "charset=utf8mb4")

	_, err = normalizeDSN("not a dsn")
	assert.Error(t, err)
}
