// Command loadmore drives the load-more widget from the command line and
// serves rendered post fragments over HTTP.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
