package model

import "github.com/questx-lab/chatsync/pkg/errorx"

// Result is embedded in every store response. A response without
// success=true is a failure, even when no error is attached.
type Result struct {
	Success bool          `json:"success"`
	Error   *errorx.Error `json:"error,omitempty"`
}

func OK() Result {
	return Result{Success: true}
}

func Fail(err error) Result {
	e := errorx.Wrap(err, errorx.Internal)
	return Result{Error: &e}
}

func (r *Result) SetResult(result Result) {
	*r = result
}

func (r Result) Err() error {
	if r.Success {
		return nil
	}

	if r.Error != nil {
		return *r.Error
	}

	return errorx.Unknown
}

type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}
