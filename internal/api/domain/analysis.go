package domain

import (
	"errors"
)

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
)
