package logger

import (
	"os"
	"strings"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var ErrLogger = errs.Class("logger")

// Config 日志配置
type Config struct {
	Level      string `help:"日志级别,可选[debug|info|warn|error]" releaseDefault:"info" devDefault:"debug" default:"info"`
	Format     string `help:"日志格式,可选[json|console]" releaseDefault:"json" devDefault:"console" default:"console"`
	Output     string `help:"输出位置,stdout、stderr或文件路径" default:"stderr"`
	MaxSize    int    `help:"单个日志文件大小(MB)" default:"100"`
	MaxBackups int    `help:"保留的旧日志文件数量" default:"7"`
	MaxAge     int    `help:"旧日志保留天数" default:"30"`
	Compress   bool   `help:"压缩旧日志" default:"false"`
	Caller     bool   `help:"记录调用位置" default:"true"`
}

// New 按配置创建日志，输出到文件时按大小切割
func New(conf Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(conf.Level)
	if err != nil {
		return nil, ErrLogger.Wrap(err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch strings.ToLower(conf.Format) {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, ErrLogger.New("unsupported format %q", conf.Format)
	}

	core := zapcore.NewCore(enc, writer(conf), zap.NewAtomicLevelAt(level))
	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if conf.Caller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...), nil
}

func writer(conf Config) zapcore.WriteSyncer {
	switch conf.Output {
	case "", "stderr":
		return zapcore.Lock(os.Stderr)
	case "stdout":
		return zapcore.Lock(os.Stdout)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   os.ExpandEnv(conf.Output),
		MaxSize:    conf.MaxSize,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAge,
		Compress:   conf.Compress,
	})
}

// Factory 用于 process.ExecOptions.LoggerFactory，配置错误时保留原日志
func Factory(conf *Config) func(*zap.Logger) *zap.Logger {
	return func(l *zap.Logger) *zap.Logger {
		log, err := New(*conf)
		if err != nil {
			l.Warn("invalid log configuration, using default logger", zap.Error(err))
			return l
		}
		return log
	}
}
