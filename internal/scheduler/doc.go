// Package scheduler runs the periodic dispatch cycle.
//
// A cron @every entry triggers RunCycle. Each cycle walks a point-in-time copy
// of the reminder store and, for every reminder whose remind time has passed
// and that has not been dispatched yet, pushes a snapshot onto the delivery
// queue and marks it in the tracker. Cycles never overlap, which is what keeps
// dispatch at most once per reminder.
package scheduler
