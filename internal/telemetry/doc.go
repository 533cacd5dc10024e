// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 ActionFlow 提供集中式的 TracerProvider 和 MeterProvider 配置，
// 以及执行引擎使用的跨度事件接收器（Sink）。
// silent 模式下使用 noop 实现，不产生任何调用，也不连接外部服务；
// minimal 模式仅在本地记录调试级别的跨度事件；full 模式走 OTLP 导出。
package telemetry
