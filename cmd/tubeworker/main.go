// Command tubeworker runs a fleet of beanstalkd workers described by a
// YAML or JSON file and puts test jobs into tubes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "tubeworker:", err)
		}
		os.Exit(1)
	}
}
