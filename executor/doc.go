// Copyright (c) ActionFlow Authors.
// Licensed under the MIT License.

/*
Package executor 实现 ActionFlow 的执行核心：带超时的单次尝试、
重试退避、补偿回滚、异步完成协议与运行历史。

# 概述

executor 把一个动作从"调用"推进到"确定性结局"。同步路径是
Run：尝试执行 → 失败时按指数退避重试 → 预算耗尽后进入补偿路径，
动作级失败永远以 Outcome 返回而不是 panic。异步路径是
RunAsync / Await / Cancel：派发返回句柄，等待是对 owner 信箱的
选择性接收，取消作用于 worker 的取消域并级联终止其子任务。

# 同步执行

  - Execute       — 单次尝试：参数校验 → 超时约束下运行 → 终止分类 → 输出校验
  - Run           — 完整生命周期：重试循环 + 补偿 + 历史/指标/遥测
  - RunByName     — 按注册名执行，元数据取自注册中心
  - Policy        — 指数退避策略：base × 2^(attempt-1)，封顶 MaxBackoff
  - ShouldRetry   — 重试判定：错误类别 + 显式提示 + 尝试预算

终止类别以稳定的消息前缀区分：action raised（错误 panic）、
action threw（非错误 panic）、action aborted（业务中止）、
action exited（无结果退出）、action killed（引擎强制终止）、
以及独立的 Timeout 形态。

# 异步完成协议

  - RunAsync      — 池上派发，返回 AsyncHandle；completion 先于退出通知投递
  - Await         — 选择性接收：completion 优先；normal/noproc down 触发
    宽限窗口；异常 down 立即失败；时限到达返回独立的 Await 超时
  - Observe       — 非属主监视：新 MonitorID + 独立信箱，死 worker 合成 noproc
  - Cancel        — 幂等取消：作用域级联终止 + 监视注销 + 信箱有界清理

# 运行历史

HistoryStore 在内存中保存每次 Run 的 RunRecord（逐次尝试、补偿结果、
最终状态），支持按动作、状态与时间范围查询。
*/
package executor
