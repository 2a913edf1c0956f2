package slice

import (
	"strings"

	"github.com/spf13/cast"
)

// AppendUniqueString 向 string 切片追加元素，如果元素已存在则不追加。
func AppendUniqueString(list []string, v string) []string {
	for _, item := range list {
		if item == v {
			return list
		}
	}
	return append(list, v)
}

// SplitToStrings 将逗号分隔的字符串解析为字符串切片。
func SplitToStrings(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if len(part) > 0 {
			result = append(result, part)
		}
	}
	return result
}

// SplitToIDs 将逗号分隔的 Zabbix 对象 ID 去重后返回，非数字与 0 被忽略。
func SplitToIDs(value string) []string {
	var result []string
	for _, part := range SplitToStrings(value) {
		id, err := cast.ToUint64E(part)
		if err != nil || id == 0 {
			continue
		}
		result = AppendUniqueString(result, cast.ToString(id))
	}
	return result
}
