package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// toggleRow deletes the rows matching cond and inserts row when nothing was
// deleted. on is the membership after the call; created is set only when
// this call inserted row. A unique-index conflict means an identical
// concurrent request inserted first, which leaves the membership on.
func toggleRow(db *gorm.DB, row interface{}, cond string, args ...interface{}) (on, created bool, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where(cond, args...).Delete(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		on = true
		return translate(tx.Create(row).Error)
	})
	if errors.Is(err, ErrDuplicate) {
		return true, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return on, on, nil
}
