package logging

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

/*
Setup configures the process-wide logger from configuration. Every
package logs through the charmbracelet default logger, so this runs
once, before any agent starts.

Recognized settings: log.level (debug|info|warn|error), log.format
(text|json) and log.caller.
*/
func Setup() {
	log.SetTimeFormat("15:04:05.000")

	switch viper.GetString("log.level") {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	if viper.GetString("log.format") == "json" {
		log.SetFormatter(log.JSONFormatter)
	}

	if viper.GetBool("log.caller") {
		log.SetReportCaller(true)
	}

	log.SetOutput(os.Stderr)
}
