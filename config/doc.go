// Package config 提供 PromptGate 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → .env → 兼容环境变量 → 前缀环境变量 的顺序加载，
// 并支持在运行时监听配置文件，热更新日志级别与默认审核等级。
package config
