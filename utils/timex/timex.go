package timex

import (
	"time"
)

func NowLocalTime() time.Time {
	return time.Now().Local()
}

// UnixBefore 返回 t 往前推 d 的 Unix 秒，Zabbix 的 time_from/time_till 使用该格式。
func UnixBefore(t time.Time, d time.Duration) int64 {
	return t.Add(-d).Unix()
}
