// 版权所有 2024 ActionFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的执行引擎指标采集能力，覆盖
动作执行、补偿、异步协议、计划/工作流与工作池五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。
指标禁用时引擎持有 nil Collector，所有记录方法均为空操作。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - 执行指标：执行总数、执行耗时、重试计数，
    按 action/status 分组，状态归类为 ok/error/timeout/panic/abort。
  - 补偿指标：补偿运行计数，按 action/result 分组，
    结果归类为 completed/failed/crashed。
  - 异步指标：派发、等待、取消计数，按 action 分组。
  - 计划与工作流指标：归一化计数（ok/cycle/invalid）、
    工作流执行总数与耗时，按 workflow/status 分组。
  - 工作池指标：活跃 worker 数与排队任务数 Gauge。
*/
package metrics
