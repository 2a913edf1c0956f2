package zabbix

import (
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound 远程没有返回匹配的对象。
	ErrNotFound = errors.New("zabbix object not found")
	// ErrMissingIdentity 构造实体时缺少标识字段，属于调用方编程错误，不做降级。
	ErrMissingIdentity = errors.New("missing identity field")
)

func notFound(method, key, id string) error {
	return errors.Wrapf(ErrNotFound, "%s %s=%s", method, key, id)
}

func missingIdentity(kind, key string) error {
	return errors.Wrapf(ErrMissingIdentity, "%s: %s", kind, key)
}

// IsNotFound 判断 err 是否表示对象不存在。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Contain 在边界处记录错误并降级为“值缺失”：出错时返回零值和 false。
// 远程失败按 error 级别记录细节，对象不存在按 info 级别记录。
func Contain[T any](msg string, v T, err error) (T, bool) {
	if err == nil {
		return v, true
	}
	logContained(msg, err)
	var zero T
	return zero, false
}

// ContainErr 用于写操作：记录错误并返回是否成功。
func ContainErr(msg string, err error) bool {
	if err == nil {
		return true
	}
	logContained(msg, err)
	return false
}

func logContained(msg string, err error) {
	var re *core.RemoteError
	switch {
	case errors.As(err, &re):
		log.Errorw(msg,
			"method", re.Method,
			"code", re.Code,
			"message", re.Message,
			"data", re.Data,
		)
	case errors.Is(err, ErrNotFound):
		log.Infow(msg, "error", err.Error())
	default:
		log.Errorw(msg, "error", err.Error())
	}
}
