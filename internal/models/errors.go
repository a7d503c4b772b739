package models

import "errors"

var (
	// ErrQuizNotFound 题目记录不存在
	ErrQuizNotFound = errors.New("quiz not found")

	// ErrInvalidQuizStatus 无效的状态
	ErrInvalidQuizStatus = errors.New("invalid quiz status")

	// ErrCorruptQuestion 数据库中的题目选项无法解码
	ErrCorruptQuestion = errors.New("corrupt quiz question")
)
