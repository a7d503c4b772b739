package model

import (
	"errors"
	"reflect"
	"strings"

	"github.com/fyerfyer/quiz-gen-system/internal/llm"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 在gin的校验引擎上注册自定义规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	// 错误信息中使用json字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v.RegisterValidation("difficulty", validateDifficulty)
}

// validateDifficulty 难度只接受easy、medium、hard，不区分大小写
func validateDifficulty(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return true
	}
	return llm.IsValidDifficulty(strings.ToLower(value))
}

// ValidationMessage 将校验错误转换为可读信息
func ValidationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "difficulty":
			msgs = append(msgs, field+" must be one of easy, medium, hard")
		case "min", "max":
			msgs = append(msgs, field+" must be "+e.Tag()+" "+e.Param())
		case "oneof":
			msgs = append(msgs, field+" must be one of "+e.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
