package termination

import "time"

// idleBackoff is the pause between idle-loop retries.
const idleBackoff = time.Millisecond

func defaultSleepShort() {
	time.Sleep(idleBackoff)
}
