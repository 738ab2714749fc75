package main

import "github.com/apex/log"

func setLogLevel(verbose bool) {
	if verbose {
		log.SetLevel(log.DebugLevel)
		return
	}
	log.SetLevel(log.InfoLevel)
}
