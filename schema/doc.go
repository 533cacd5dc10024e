// Copyright (c) ActionFlow Authors.
// Licensed under the MIT License.

/*
Package schema 提供可插拔的参数与输出校验引擎。

# 概述

动作（Action）的入参和出参都是 map，由声明的 schema 约束。引擎支持多种
schema 表示形式并自动识别：内置 JSON Schema（draft-07 子集）与原生字段
表（Fields）两种格式，亦可通过 Engine.Register 扩展。

# 主要能力

  - Engine.Validate — 按注册顺序探测格式并执行校验，返回归一化后的值
    （缺省字段按 Default 填充）
  - JSONSchema     — 类型 / required / properties / enum / const /
    数值范围 / 字符串长度与 pattern / 数组约束
  - Fields          — 轻量字段表：Type / Required / Default / Enum

校验失败返回 INVALID_INPUT 类错误；无法识别的 schema 声明返回
CONFIGURATION 类错误。
*/
package schema
