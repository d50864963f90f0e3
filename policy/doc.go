// Package policy decides how the resource pool arbitrates between waiters.
// It is opt-in: the zero value keeps the greedy behaviour where whichever
// process is swept first takes a free instance, and low-priority waiters may
// starve under contention.
package policy
