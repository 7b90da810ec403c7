package apperr

import "errors"

// Business Error Codes
const (
	CodeSuccess       = 0
	CodeBadRequest    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeInternalError = 500
	CodeDatabaseError = 1001
	CodeCacheError    = 1002

	// 版块结构错误
	CodeBoardNotFound       = 2001
	CodeCategoryNotFound    = 2002
	CodeParentBoardMissing  = 2003
	CodeBoardSelfParent     = 2004
	CodeBoardCycle          = 2005
	CodeBoardMissingField   = 2006
	CodeBoardInvalidMove    = 2007
	CodeRecountTokenInvalid = 2008

	// 用户组错误
	CodeGroupProtected      = 3001
	CodeGroupInSubscription = 3002
	CodeGroupImplicit       = 3003
	CodeNoGroups            = 3004
	CodeGroupNotFound       = 3005

	// 帖子错误
	CodeMessageIsFirst = 4001
)

// Business Errors
var (
	ErrInvalidParams = errors.New("invalid parameters")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")

	ErrBoardNotFound      = errors.New("board not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrParentBoardMissing = errors.New("parent board missing from tree")
	ErrBoardSelfParent    = errors.New("board cannot be its own parent")
	ErrBoardCycle         = errors.New("board cannot be moved into its own descendant")
	ErrBoardMissingField  = errors.New("required board field missing")
	ErrBoardInvalidMove   = errors.New("invalid board move")
	ErrRecountToken       = errors.New("invalid recount continuation token")

	ErrGroupProtected      = errors.New("membergroup is protected")
	ErrGroupInSubscription = errors.New("membergroup is used by a paid subscription")
	ErrGroupImplicit       = errors.New("membergroup membership is implicit")
	ErrNoGroups            = errors.New("no membergroups to process")
	ErrGroupNotFound       = errors.New("membergroup not found")

	ErrMessageIsFirst = errors.New("first message of a topic with replies cannot be removed alone")
)

var codes = map[error]int{
	ErrInvalidParams:       CodeBadRequest,
	ErrUnauthorized:        CodeUnauthorized,
	ErrForbidden:           CodeForbidden,
	ErrBoardNotFound:       CodeBoardNotFound,
	ErrCategoryNotFound:    CodeCategoryNotFound,
	ErrParentBoardMissing:  CodeParentBoardMissing,
	ErrBoardSelfParent:     CodeBoardSelfParent,
	ErrBoardCycle:          CodeBoardCycle,
	ErrBoardMissingField:   CodeBoardMissingField,
	ErrBoardInvalidMove:    CodeBoardInvalidMove,
	ErrRecountToken:        CodeRecountTokenInvalid,
	ErrGroupProtected:      CodeGroupProtected,
	ErrGroupInSubscription: CodeGroupInSubscription,
	ErrGroupImplicit:       CodeGroupImplicit,
	ErrNoGroups:            CodeNoGroups,
	ErrGroupNotFound:       CodeGroupNotFound,
	ErrMessageIsFirst:      CodeMessageIsFirst,
}

// AppError Application Error with code and message
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap 支持 errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError Create new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// New 基于哨兵错误创建带上下文的错误，保留 errors.Is 语义
func New(sentinel error, message string) *AppError {
	return &AppError{
		Code:    CodeOf(sentinel),
		Message: sentinel.Error() + ": " + message,
		Err:     sentinel,
	}
}

// CodeOf 返回错误对应的业务码
func CodeOf(err error) int {
	if err == nil {
		return CodeSuccess
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeInternalError
}

// WrapError Wrap error with code
func WrapError(err error, code int) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Err:     err,
	}
}
