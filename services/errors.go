package services

import "errors"

var (
	ErrRoomNotFound = errors.New("房间不存在")
	ErrRoomFull     = errors.New("房间已满")
	ErrTxConflict   = errors.New("事务冲突，重试次数已用尽")
)

// AuthorizationError 调用者缺少所需角色或房主身份，不重试，直接反馈给用户
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

// PreconditionError 阶段不对、资源耗尽或重复提交，不重试
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// ValidationError 输入本身不合法，在发起事务之前就拒绝
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func authErr(reason string) error {
	return &AuthorizationError{Reason: reason}
}

func precondErr(reason string) error {
	return &PreconditionError{Reason: reason}
}

func validationErr(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsAuthorizationError 判断是否为权限错误
func IsAuthorizationError(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

// IsPreconditionError 判断是否为前置条件错误
func IsPreconditionError(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}

// IsValidationError 判断是否为输入校验错误
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
