package hvp

import (
	"fmt"
	"os"
)

func debugf(format string, a ...any) {
	if os.Getenv("HVPARCHIVE_DEBUG") == "" {
		return
	}
	fmt.Fprintf(os.Stderr, "[hvp] "+format+"\n", a...)
}
