package utils

import "time"

// StreamMaxLen caps the event inbox stream
const StreamMaxLen int64 = 500

// StreamBlock is how long a stream read waits for new events
const StreamBlock = 2 * time.Second
