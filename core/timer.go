package core

// Common output resolutions
const (
	Microseconds = 1000000
	Milliseconds = 1000
	Nanoseconds  = 1000000000
)

// Global clock used by firmware code that does not carry its own *Clock
var systemClock *Clock

// SetSystemClock is called by target-specific code to register its clock
func SetSystemClock(c *Clock) {
	systemClock = c
}

// SystemClock returns the registered clock or panics if missing
func SystemClock() *Clock {
	if systemClock == nil {
		panic("system clock not configured")
	}
	return systemClock
}

// GetUptime returns the system clock in output ticks
func GetUptime() uint64 {
	return SystemClock().Now()
}

// TicksFromUS converts microseconds to output ticks of c
func TicksFromUS(c *Clock, us uint64) uint64 {
	return mulDiv(us, c.res.OutputHz, Microseconds)
}

// TicksToUS converts output ticks of c to microseconds
func TicksToUS(c *Clock, ticks uint64) uint64 {
	return mulDiv(ticks, Microseconds, c.res.OutputHz)
}

// SystemOverflowHandler forwards the platform interrupt to the system clock.
// Targets export this as their timer exception handler.
func SystemOverflowHandler() {
	if systemClock != nil {
		systemClock.HandleOverflow()
	}
}
