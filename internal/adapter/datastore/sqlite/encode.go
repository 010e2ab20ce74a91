// Package sqlite file: internal/adapter/datastore/sqlite/encode.go
package sqlite

import (
	"math"
	"time"
)

// encodeValue 把驱动返回的值归一化为可 JSON 序列化的形式。
// []byte 转字符串，时间转 RFC3339，非法浮点数（NaN/Inf）转 null。
func encodeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	default:
		return v
	}
}
