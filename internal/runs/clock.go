package runs

import "time"

var timeNow = func() time.Time { return time.Now().UTC() }
