package errors

import (
	"fmt"
)

var (
	ErrNotFound      = fmt.Errorf("recallchat: not found")
	ErrAddFailed     = fmt.Errorf("recallchat: failed to add memory")
	ErrInvalidParams = fmt.Errorf("recallchat: invalid params")
	ErrInternal      = fmt.Errorf("recallchat: internal error")
)
