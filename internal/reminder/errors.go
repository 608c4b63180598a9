package reminder

import "errors"

// ErrPastTime means the requested reminder instant is not in the future.
// Non-fatal: no trigger is armed and the caller decides user messaging.
var ErrPastTime = errors.New("reminder time is in the past")

// ErrPermissionDenied means the platform refuses exact wake scheduling.
// Non-fatal: no trigger is armed; the caller prompts for the capability and
// the user retries the save.
var ErrPermissionDenied = errors.New("exact wake scheduling not permitted")
