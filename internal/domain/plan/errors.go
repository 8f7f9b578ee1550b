package plan

import "errors"

var (
	ErrPlanNotFound  = errors.New("treatment plan not found")
	ErrPhaseNotFound = errors.New("treatment plan phase not found")
	ErrItemNotFound  = errors.New("treatment plan item not found")
)
