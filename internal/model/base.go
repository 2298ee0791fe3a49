package model

import "github.com/google/uuid"

// newID 所有主键统一使用 UUID 字符串，与支付侧 metadata 保持同一格式
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
