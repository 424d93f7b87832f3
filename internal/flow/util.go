package flow

import (
	"time"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

func flowEngineSelectorGenerationError() error {
	return errors.SelectorGeneration("no valid selectors found for element")
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
