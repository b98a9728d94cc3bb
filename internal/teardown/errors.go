package teardown

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTenantID 请求携带的tenant_id不是合法UUID
	ErrInvalidTenantID = errors.New("invalid tenant id")

	// ErrTeardownInProgress 同一租户的teardown已在执行（租户级互斥锁被占）
	ErrTeardownInProgress = errors.New("teardown already in progress for tenant")
)

// FatalStepError 致命步骤失败：携带失败的步骤名，便于操作员定位后重试
type FatalStepError struct {
	Step string
	Err  error
}

func (e *FatalStepError) Error() string {
	return fmt.Sprintf("teardown step '%s' failed: %v", e.Step, e.Err)
}

func (e *FatalStepError) Unwrap() error {
	return e.Err
}
