// Package buildinfo carries version stamps set with -ldflags "-X".
package buildinfo

import "runtime"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
}

// String is the one-line form printed by the CLI's -version flag.
func String() string {
	s := "gavrptw " + Version
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	return s + " " + runtime.Version()
}
