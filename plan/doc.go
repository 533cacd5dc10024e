// Copyright (c) ActionFlow Authors.
// Licensed under the MIT License.

/*
Package plan 提供命名依赖图的构建、校验与并行阶段划分。

# 概述

plan 包是一个纯粹的声明变换层：把一组单元工作声明（动作 + 参数 +
依赖）构建为命名计划，推导依赖图并做环检测，再按拓扑分层算出可以
并行执行的阶段序列。包本身不执行任何动作，结果交给 workflow 解释器
或外部调度器消费。

# 核心类型与操作

  - Plan / Instruction — 计划构建态与规范化后的执行指令
  - Step / Opts        — 声明形态：动作 + 参数 + 指令级选项
  - New / Add / DependsOn / Build — 逐步或声明式构建
  - ParseDeps          — 动态边界上的依赖列表校验
  - Normalize          — 推导 Graph 并做三态 DFS 环检测
  - ExecutionPhases    — Kahn 分层，产出可并行的阶段序列
  - ToDeclarations     — 序列化回最小声明形态（经 Build 可往返）

# 不变式

Normalize 成功返回的图保证无环；ExecutionPhases 中每个步骤落在其
依赖全部满足的最早阶段；同一阶段内的步骤互相之间没有依赖。
*/
package plan
