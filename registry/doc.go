// Package registry holds the fixed set of authentication modules configured
// for the device.
//
// The registry is built once at startup from the module factory and never
// changes afterwards. Lookups by id return interfaces.ErrUnknownModule for
// ids that were not configured; listings are always sorted by id so the
// reconstruction tie-break and the API output are stable.
package registry
