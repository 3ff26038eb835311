// Package model 包含持久化模型定义
// - account.go: Account 账户记录（users.json 与 sqlite 共用）
package model
