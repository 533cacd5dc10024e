// Package config 提供 ActionFlow 引擎的配置管理功能。
//
// 包含执行器、异步协议、执行环境、工作流、日志与遥测的全部数值开关。
// 支持从默认值、YAML 文件和环境变量加载（后者覆盖前者），
// 配置以显式结构体注入各构造函数，引擎不读取任何全局可变状态。
package config
