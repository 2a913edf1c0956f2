package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Log = zap.SugaredLogger

type LogCfg struct {
	Filepath    string `mapstructure:"filepath"`    // 日志文件路径
	Level       string `mapstructure:"level"`       // 日志级别 debug info warn error
	MaxSize     int    `mapstructure:"max_size"`    // 单个日志文件最大空间(单位：MB)
	MaxAge      int    `mapstructure:"max_age"`     // 文件最多保留多少天
	MaxBackups  int    `mapstructure:"max_backups"` // 文件最多保留多少备份
	Compress    bool   `mapstructure:"compress"`
	Development bool   `mapstructure:"development"` // 开发模式下输出更详细的堆栈
}

var (
	defaultLogFilePath = "/opt/itops-zabbix/log/itops-zabbix.log"

	Logger *Log
)

func SetDefaultLog(logConf *LogCfg) {
	Logger = NewLogger(logConf)
}

// NewLogger 初始化日志对象，同时输出到标准输出与滚动文件。
func NewLogger(logConf *LogCfg) *Log {
	hook := &lumberjack.Logger{
		Filename:   logConf.Filepath,
		LocalTime:  true,
		MaxAge:     logConf.MaxAge,
		MaxBackups: logConf.MaxBackups,
		MaxSize:    logConf.MaxSize,
		Compress:   logConf.Compress,
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "linenum",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.FullCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	atomicLevel, err := zap.ParseAtomicLevel(logConf.Level)
	if err != nil {
		atomicLevel = zap.NewAtomicLevel()
	}

	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if logConf.Filepath != "" {
		writers = append(writers, zapcore.AddSync(hook))
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(writers...),
		atomicLevel,
	)

	field := zap.Fields(zap.String("serviceName", "itops-zabbix"))
	// 跳过一层调用栈，显示实际调用日志的位置而不是 log.go
	callerSkip := zap.AddCallerSkip(1)
	caller := zap.AddCaller()

	if logConf.Development {
		return zap.New(core, caller, callerSkip, zap.Development(), field).Sugar()
	}
	return zap.New(core, caller, callerSkip, field).Sugar()
}

func init() {
	Logger = NewLogger(&LogCfg{
		Filepath:    defaultLogFilePath,
		Development: true,
		Level:       "info",
		MaxAge:      100,
		MaxBackups:  20,
		MaxSize:     100,
	})
}

// 便捷方法 - 直接使用全局 Logger

func Debug(args ...interface{}) {
	Logger.Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	Logger.Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	Logger.Debugw(msg, keysAndValues...)
}

func Info(args ...interface{}) {
	Logger.Info(args...)
}

func Infof(template string, args ...interface{}) {
	Logger.Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	Logger.Infow(msg, keysAndValues...)
}

func Warn(args ...interface{}) {
	Logger.Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	Logger.Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	Logger.Warnw(msg, keysAndValues...)
}

func Error(args ...interface{}) {
	Logger.Error(args...)
}

func Errorf(template string, args ...interface{}) {
	Logger.Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	Logger.Errorw(msg, keysAndValues...)
}

func Fatalf(template string, args ...interface{}) {
	Logger.Fatalf(template, args...)
}

func Sync() error {
	if Logger != nil {
		return Logger.Sync()
	}
	return nil
}
