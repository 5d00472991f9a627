package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig - настройки логирования
//
// Output:
//   - "" или "stderr" - стандартный поток ошибок
//   - "stdout" - стандартный вывод
//   - путь к файлу - запись в файл с ротацией (lumberjack)
type LogConfig struct {
	Level       string
	Format      string // json | text
	Output      string
	Development bool

	// Ротация файла (используется только при записи в файл)
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Logger - обертка над zap.Logger с доменными хелперами
type Logger struct {
	*zap.Logger
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// InitLogger создает логгер по конфигурации.
// Никогда не возвращает nil: при ошибке открытия файла пишет в stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "text") || strings.EqualFold(cfg.Format, "console") {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, openSink(cfg), zap.NewAtomicLevelAt(level))

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl}
}

// openSink выбирает место записи логов
func openSink(cfg LogConfig) zapcore.WriteSyncer {
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		return zapcore.Lock(os.Stderr)
	case "stdout":
		return zapcore.Lock(os.Stdout)
	}

	// Проверяем, что файл доступен на запись, до передачи его lumberjack,
	// который открывает файл лениво
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zapcore.Lock(os.Stderr)
	}

	if cfg.MaxSizeMB <= 0 {
		return zapcore.Lock(f)
	}
	f.Close()

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// parseLevel переводит строку в уровень zap (по умолчанию info)
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitGlobalLogger создает логгер и делает его глобальным
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger заменяет глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный логгер, создавая логгер по умолчанию при первом обращении
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - короткий алиас GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// With возвращает дочерний логгер с полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

func (l *Logger) WithComponent(name string) *Logger { return l.With(Component(name)) }
func (l *Logger) WithStoreKey(key string) *Logger   { return l.With(StoreKey(key)) }

// ============================================================
// Глобальные функции
// ============================================================

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// ============================================================
// Конструкторы доменных полей
// ============================================================

func Component(name string) zap.Field { return zap.String("component", name) }
func StoreKey(key string) zap.Field   { return zap.String("store_key", key) }
func Backend(name string) zap.Field   { return zap.String("backend", name) }
func Reason(reason string) zap.Field  { return zap.String("reason", reason) }
func Action(action string) zap.Field  { return zap.String("action", action) }
func Premium(pct float64) zap.Field   { return zap.Float64("premium_pct", pct) }
func Latency(ms float64) zap.Field    { return zap.Float64("latency_ms", ms) }
func RequestID(id string) zap.Field   { return zap.String("request_id", id) }
func ClientIP(ip string) zap.Field    { return zap.String("client_ip", ip) }
func Active(active bool) zap.Field    { return zap.Bool("active", active) }

// Field - поле структурированного лога
type Field = zap.Field

// Переэкспорт конструкторов zap, чтобы пакеты не импортировали zap напрямую
var (
	String  = zap.String
	Int     = zap.Int
	Int64   = zap.Int64
	Float64 = zap.Float64
	Bool    = zap.Bool
	Err     = zap.Error
	Any     = zap.Any
	Dur     = zap.Duration
)
