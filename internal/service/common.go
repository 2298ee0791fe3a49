package service

import (
	"errors"

	"CommunityHub/internal/pkg"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// pageOffset 页码从 1 开始，size 超界时回落到默认值
func pageOffset(page, size int) (offset, limit int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return (page - 1) * size, size
}

// lookupErr 把读库错误翻译成 NotFound / internal
func lookupErr(err error, notFoundMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkg.NewError(pkg.KindNotFound, notFoundMsg)
	}
	return pkg.WrapError(pkg.KindInternal, "store lookup failed", err)
}

func writeErr(msg string, err error) error {
	return pkg.WrapError(pkg.KindPersistence, msg, err)
}
