package actionflow

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/actionflow/action"
	"github.com/BaSui01/actionflow/config"
	"github.com/BaSui01/actionflow/executor"
	"github.com/BaSui01/actionflow/internal/metrics"
	"github.com/BaSui01/actionflow/internal/pool"
	"github.com/BaSui01/actionflow/internal/telemetry"
	"github.com/BaSui01/actionflow/plan"
	"github.com/BaSui01/actionflow/schema"
	"github.com/BaSui01/actionflow/types"
	"github.com/BaSui01/actionflow/workflow"
)

// ====== 引擎装配 ======

// Engine 把配置、日志、执行环境、遥测与指标装配成一个可用的执行引擎。
// 零配置即可工作：New() 使用默认配置、noop 遥测与进程内执行环境。
type Engine struct {
	cfg       *config.Config
	logger    *zap.Logger
	ownLogger bool

	registry  *action.Registry
	schemas   *schema.Engine
	pool      *pool.WorkerPool
	metrics   *metrics.Collector
	providers *telemetry.Providers
	sink      *telemetry.Sink
	history   *executor.HistoryStore

	exec   *executor.Executor
	interp *workflow.Interpreter
}

// EngineOption 调整 New 的装配行为。
type EngineOption func(*engineOptions)

type engineOptions struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	registry   *action.Registry
	schemas    *schema.Engine
	registerer prometheus.Registerer
	noPool     bool
}

// WithConfig 使用现成的配置，跳过文件与环境变量加载。
func WithConfig(cfg *config.Config) EngineOption {
	return func(o *engineOptions) { o.cfg = cfg }
}

// WithConfigFile 从 YAML 文件加载配置（环境变量仍可覆盖）。
func WithConfigFile(path string) EngineOption {
	return func(o *engineOptions) { o.configPath = path }
}

// WithLogger 使用调用方的 zap logger，缺省时按 Log 配置自建。
func WithLogger(logger *zap.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = logger }
}

// WithRegistry 使用调用方预装的动作注册中心。
func WithRegistry(r *action.Registry) EngineOption {
	return func(o *engineOptions) { o.registry = r }
}

// WithSchemas 使用调用方的校验引擎（例如注册了自定义格式）。
func WithSchemas(e *schema.Engine) EngineOption {
	return func(o *engineOptions) { o.schemas = e }
}

// WithMetricsRegisterer 把指标注册到指定 Registerer 而非全局默认，
// 同时隐含开启指标采集。
func WithMetricsRegisterer(reg prometheus.Registerer) EngineOption {
	return func(o *engineOptions) { o.registerer = reg }
}

// WithoutPool 不创建执行环境；RunAsync 将同步返回配置错误。
func WithoutPool() EngineOption {
	return func(o *engineOptions) { o.noPool = true }
}

// New 装配执行引擎。装配顺序：配置 → 日志 → 遥测 → 指标 →
// 执行环境 → 注册中心/校验引擎 → Executor → 工作流解释器。
func New(opts ...EngineOption) (*Engine, error) {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		if o.configPath != "" {
			loaded, err := config.NewLoader().WithConfigPath(o.configPath).Load()
			if err != nil {
				return nil, fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		} else {
			cfg = config.DefaultConfig()
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger := o.logger
	ownLogger := false
	if logger == nil {
		logger = buildLogger(cfg.Log)
		ownLogger = true
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	sink := telemetry.NewSink(cfg.Telemetry, logger)

	var collector *metrics.Collector
	switch {
	case o.registerer != nil:
		collector = metrics.NewCollectorWith(o.registerer, cfg.Metrics.Namespace, logger)
	case cfg.Metrics.Enabled:
		collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}

	var workerPool *pool.WorkerPool
	if cfg.Pool.Enabled && !o.noPool {
		workerPool = pool.New(pool.Config{
			MaxWorkers:  cfg.Pool.MaxWorkers,
			QueueSize:   cfg.Pool.QueueSize,
			IdleTimeout: cfg.Pool.IdleTimeout,
			PanicHandler: func(r any) {
				logger.Error("pool task panicked", zap.Any("panic", r))
			},
		})
	}

	registry := o.registry
	if registry == nil {
		registry = action.NewRegistry(logger)
	}
	schemas := o.schemas
	if schemas == nil {
		schemas = schema.NewEngine(logger)
	}
	history := executor.NewHistoryStore()

	exec := executor.New(executor.Options{
		Config:   cfg.Executor,
		Async:    cfg.Async,
		Logger:   logger,
		Registry: registry,
		Schemas:  schemas,
		Pool:     workerPool,
		Metrics:  collector,
		Sink:     sink,
		History:  history,
	})

	interp := workflow.New(exec, workflow.Options{
		Config:  cfg.Workflow,
		Grace:   cfg.Async.WorkflowGrace,
		Logger:  logger,
		Metrics: collector,
		Sink:    sink,
	})

	return &Engine{
		cfg:       cfg,
		logger:    logger,
		ownLogger: ownLogger,
		registry:  registry,
		schemas:   schemas,
		pool:      workerPool,
		metrics:   collector,
		providers: providers,
		sink:      sink,
		history:   history,
		exec:      exec,
		interp:    interp,
	}, nil
}

// MustNew 同 New，失败时 panic。用于示例与测试装配。
func MustNew(opts ...EngineOption) *Engine {
	e, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// ====== 执行入口 ======

// Register 注册动作及其元数据。
func (e *Engine) Register(act action.Action, meta action.Metadata) error {
	return e.registry.Register(act, meta)
}

// RegisterFunc 以函数形式注册动作。
func (e *Engine) RegisterFunc(name string, fn action.RunFunc, meta action.Metadata) error {
	return e.registry.RegisterFunc(name, fn, meta)
}

// Run 同步执行动作：校验、超时、重试退避、补偿，返回归一化结果。
func (e *Engine) Run(ctx context.Context, act action.Action, params map[string]any, opts ...executor.RunOption) types.Outcome {
	return e.exec.Run(ctx, act, params, opts...)
}

// RunByName 按注册名执行动作。
func (e *Engine) RunByName(ctx context.Context, name string, params map[string]any, opts ...executor.RunOption) types.Outcome {
	return e.exec.RunByName(ctx, name, params, opts...)
}

// RunAsync 异步派发动作，返回可 Await/Cancel 的句柄。
func (e *Engine) RunAsync(ctx context.Context, act action.Action, params map[string]any, opts ...executor.RunOption) (*executor.AsyncHandle, error) {
	return e.exec.RunAsync(ctx, act, params, opts...)
}

// Await 等待异步执行完成；timeout<=0 时使用派发时记录的默认等待超时。
func (e *Engine) Await(ctx context.Context, h *executor.AsyncHandle, timeout time.Duration) types.Outcome {
	return e.exec.Await(ctx, h, timeout)
}

// Cancel 取消异步执行。幂等：重复取消或完成后取消均返回成功。
func (e *Engine) Cancel(h *executor.AsyncHandle) error {
	return e.exec.Cancel(h)
}

// ExecuteWorkflow 解释执行一个工作流定义。
func (e *Engine) ExecuteWorkflow(ctx context.Context, def workflow.Definition, input map[string]any) (*workflow.Result, error) {
	return e.interp.ExecuteWorkflow(ctx, def, input)
}

// ExecutePlan 按执行阶段运行一个计划图。
func (e *Engine) ExecutePlan(ctx context.Context, p *plan.Plan, input map[string]any) (*workflow.Result, error) {
	return e.interp.ExecutePlan(ctx, p, input)
}

// ====== 组件访问 ======

// Executor 返回底层执行器，供需要 Observe/CancelWorker 等
// 低层异步入口的调用方使用。
func (e *Engine) Executor() *executor.Executor { return e.exec }

// Registry 返回动作注册中心。
func (e *Engine) Registry() *action.Registry { return e.registry }

// History 返回运行历史存储。
func (e *Engine) History() *executor.HistoryStore { return e.history }

// Config 返回装配时的配置。
func (e *Engine) Config() *config.Config { return e.cfg }

// Logger 返回引擎日志器。
func (e *Engine) Logger() *zap.Logger { return e.logger }

// Shutdown 依次关闭执行环境与遥测导出器，并刷新自建日志器。
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.pool != nil {
		e.pool.Close()
	}
	err := e.providers.Shutdown(ctx)
	if e.ownLogger {
		_ = e.logger.Sync()
	}
	return err
}

// ====== 日志装配 ======

func buildLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	var buildOpts []zap.Option
	if cfg.EnableCaller {
		buildOpts = append(buildOpts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		buildOpts = append(buildOpts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(buildOpts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
