package domain

import "errors"

var (
	// ErrValidation 入参校验失败，任何状态变更之前返回
	ErrValidation = errors.New("validation failed")
	// ErrNotFound 活跃资金池或配置不存在
	ErrNotFound = errors.New("not found")
	// ErrInsufficientFunds 支付金额超过当前余额，触发紧急模式
	ErrInsufficientFunds = errors.New("insufficient fund balance")
	// ErrConcurrentUpdate 乐观锁冲突，调用方可带新状态重试
	ErrConcurrentUpdate = errors.New("concurrent update conflict")
	// ErrFundNotActive 资金池非 active 状态，拒绝注资
	ErrFundNotActive = errors.New("fund is not active")
	// ErrDuplicateBonus 同一快递员同一周期的奖金已存在
	ErrDuplicateBonus = errors.New("bonus already awarded for period")
	// ErrAdjustmentTooFrequent 费率调整间隔未到
	ErrAdjustmentTooFrequent = errors.New("fee adjustment too frequent")
)
