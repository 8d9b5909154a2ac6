// The main package for the jobcrawler executable.
package main

import (
	"github.com/JakeFAU/jobscall-crawler/cmd"
)

func main() {
	cmd.Execute()
}
