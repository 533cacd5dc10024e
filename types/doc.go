// Copyright (c) ActionFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 ActionFlow 引擎的全局共享类型定义。

# 概述

types 是引擎最底层的公共包，不依赖任何内部包，为 action、executor、plan、
workflow 等上层模块提供统一的类型契约。所有跨包共享的结果形态与错误分类
均定义于此，以避免循环依赖。

# 核心接口与类型

  - Outcome      — 执行结果的判别联合（Ok / OkWith / Fail / FailWith 四种形态）
  - OutcomeKind  — 结果形态判别器；零值 OutcomeInvalid 在边界处被拒绝
  - Error / Kind — 结构化错误体系（INVALID_INPUT / EXECUTION_FAILURE /
    TIMEOUT / CONFIGURATION / INTERNAL），含 Details 元数据与 Cause 链
  - ParseOutcome — 动态返回值的唯一入口；非法形态变为不可重试的契约违规错误

# 主要能力

  - 错误工具链：Normalize / KindOf / IsKind / RetryHint / Clone
  - 常用错误构造：NewInvalidInput / NewExecutionFailure / NewTimeout 等
  - 显式中止：Abort(reason) 产生可识别的业务中止信号，与 panic 故障区分
*/
package types
