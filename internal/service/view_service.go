// Package service file: internal/service/view_service.go
package service

import (
	"strings"

	"GWExplorer/internal/core/domain"
)

// datastoreOnlyMarker 出现在 URL 中时表示资源仅存在于数据存储。
const datastoreOnlyMarker = "_datastore_only_resource"

// viewableFormats 是可由本扩展渲染的声明格式白名单。
var viewableFormats = map[string]struct{}{
	"csv":  {},
	"xls":  {},
	"xlsx": {},
	"tsv":  {},
}

// ViewInfo 是视图能力描述符。
type ViewInfo struct {
	Name              string `json:"name"`
	Title             string `json:"title"`
	RequiresDatastore bool   `json:"requires_datastore"`
	DefaultTitle      string `json:"default_title"`
}

// CanView 判断资源能否由本扩展的可视化视图渲染。
// 数据存储已激活、URL 带仅数据存储标记、或声明格式在白名单内均可。
func CanView(res *domain.Resource) bool {
	if res == nil {
		return false
	}
	if res.DatastoreActive || strings.Contains(res.URL, datastoreOnlyMarker) {
		return true
	}
	if res.Format != "" {
		_, ok := viewableFormats[strings.ToLower(res.Format)]
		return ok
	}
	return false
}

// Info 返回视图能力描述符。
func Info() ViewInfo {
	return ViewInfo{
		Name:              "gwexplorer",
		Title:             "Data Explorer",
		RequiresDatastore: true,
		DefaultTitle:      "Data Explorer",
	}
}
