package orm

import "gorm.io/gorm"

const MaxPageSize = 100

// ApplyPagination 应用分页到 GORM 查询
// page <= 0 或 limit <= 0 时不分页，limit 超过 MaxPageSize 时截断
func ApplyPagination(db *gorm.DB, page, limit int) *gorm.DB {
	if page > 0 && limit > 0 {
		if limit > MaxPageSize {
			limit = MaxPageSize
		}
		offset := (page - 1) * limit
		return db.Offset(offset).Limit(limit)
	}
	return db
}
