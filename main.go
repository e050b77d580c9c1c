// The main package for the sanskritcrawl executable.
package main

import (
	"github.com/granthalaya/sanskritcrawl/cmd"
)

func main() {
	cmd.Execute()
}
