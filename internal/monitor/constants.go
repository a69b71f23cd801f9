package monitor

import "time"

const (
	defaultRefreshInterval = 2 * time.Second
	minNameWidth           = 12
	inspectMaxLines        = 12
)
