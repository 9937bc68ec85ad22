package domain

import "errors"

var (
	ErrMessageNotFound   = errors.New("message not found")
	ErrPasscodeNotFound  = errors.New("passcode not found")
	ErrPasscodeMismatch  = errors.New("invalid passcode")
	ErrPasscodeStillLive = errors.New("passcode already sent")
)
