package repo

import (
	stderrors "errors"

	"gorm.io/gorm"
)

var gormNotFound = gorm.ErrRecordNotFound

// IsNotFound reports whether err carries gorm.ErrRecordNotFound.
func IsNotFound(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports a unique constraint violation. TranslateError must be
// enabled on the gorm config.
func IsDuplicate(err error) bool {
	return stderrors.Is(err, gorm.ErrDuplicatedKey)
}

func IsForeignKey(err error) bool {
	return stderrors.Is(err, gorm.ErrForeignKeyViolated)
}
