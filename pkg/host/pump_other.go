//go:build !windows

package host

// pumpWindowMessages is a no-op: outside Windows the plugin runs its own window event
// handling.
func pumpWindowMessages() {}
