// Copyright (c) ActionFlow Authors.
// Licensed under the MIT License.

/*
Package action 定义动作契约、声明式元数据与并发安全的注册中心。

# 概述

动作是引擎调度的最小工作单元：接收参数映射，返回判别式结果 Outcome。
本包只描述"是什么"，不负责"怎么跑"——超时、重试、补偿与异步调度
全部由 executor 包实现。

# 核心接口与类型

  - Action            — 动作契约：Name + Run(ctx, params) Outcome
  - Metadata          — 声明式契约：超时、参数/输出模式、补偿声明、速率限制
  - Registry          — 名称 → 动作的并发安全注册中心，内置令牌桶限流
  - Compensator       — 可补偿动作的能力接口（需配合元数据声明生效）
  - ParamsValidator / OutputValidator — 自定义校验的能力接口
  - Describer         — 动作自述元数据的能力接口

# 主要能力

  - Func / Raw / CompensableFunc 适配器：把普通函数接入动态边界，
    返回值统一经 types.ParseOutcome 分类
  - Register / Unregister / Get / List / Has 注册管理
  - Wait / Allow 动作级速率控制（golang.org/x/time/rate 令牌桶）
*/
package action
