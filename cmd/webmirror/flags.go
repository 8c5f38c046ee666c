package main

import "flag"

type AppFlags struct {
	GlobalConfigFile string
	ListenAddress    string
}

func ParseFlags() AppFlags {
	globalConfigFile := flag.String("config", "", "Path to the global YAML/JSON configuration file. If not set, searches default locations.")
	globalConfigFileAlias := flag.String("c", "", "Alias for -config")

	listenAddress := flag.String("listen", "", "Listen address for the HTTP server (overrides config file if set)")
	listenAddressAlias := flag.String("l", "", "Alias for -listen")

	flag.Parse()

	flags := AppFlags{}

	if *globalConfigFile != "" {
		flags.GlobalConfigFile = *globalConfigFile
	} else if *globalConfigFileAlias != "" {
		flags.GlobalConfigFile = *globalConfigFileAlias
	}

	if *listenAddress != "" {
		flags.ListenAddress = *listenAddress
	} else if *listenAddressAlias != "" {
		flags.ListenAddress = *listenAddressAlias
	}

	return flags
}
