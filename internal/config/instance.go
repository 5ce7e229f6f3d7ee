package config

import (
	"fmt"
	"os"
	"strings"
)

// StandaloneInstance is the identity used when no session context is found.
const StandaloneInstance = "standalone"

// ResolveInstance derives the opaque identity for this loop instance.
//
// Precedence: explicit flag value, PACER_INSTANCE, tmux pane, screen
// session, then the literal "standalone" fallback. The identity is stable
// for the lifetime of the loop; two live loops must never share one.
func ResolveInstance(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv("PACER_INSTANCE"); v != "" {
		return v
	}
	if pane := os.Getenv("TMUX_PANE"); pane != "" {
		return fmt.Sprintf("tmux-%s", strings.TrimPrefix(pane, "%"))
	}
	if sty := os.Getenv("STY"); sty != "" {
		return fmt.Sprintf("screen-%s", sty)
	}
	return StandaloneInstance
}
