// Copyright (c) ActionFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 把有序的步骤列表解释为对 Executor 的一连串调用。

# 概述

工作流是步骤的有序列表，步骤有四种类型：

  - step / converge — 通过 Executor 执行单条指令，透传指示
  - branch          — 条件必须是严格 bool，只执行命中的一侧
  - parallel        — 并发执行一批指令，结果按声明顺序收集，
    单条失败不穿透批次边界

顺序语义：每一步的结果合并进累积结果，并作为下一步指令参数的底层
输入；第一个失败的步骤短路整条工作流，携带其错误与最近一次指示。
指令级默认：不重试、引擎默认超时，可被指令选项覆盖。

# 计划执行

ExecutePlan 消费 plan 包的阶段划分：阶段之间顺序推进，阶段内指令
并发执行，结果按阶段内声明顺序合并；阶段内第一个失败取消其余指令
并短路整个计划。

# 取消与超时

工作流级超时约束所有步骤；超时触发时 parallel 批次内的在途指令被
级联终止而不是弃置，批次最多再等一个宽限窗口收敛残留。
*/
package workflow
