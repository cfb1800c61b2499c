/*
This command provides an executable version of the host router.

For the list of command line options, run:

	hostrouter -help

For details about the usage, please see the documentation of the root
hostrouter package.
*/
package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/zalando/hostrouter"
	"github.com/zalando/hostrouter/config"
)

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("Error processing config: %s", err)
	}

	if err := hostrouter.Run(cfg.ToOptions()); err != nil {
		log.Fatal(err)
	}
}
