package config

import (
	"flag"
	"strings"
)

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging and dumps")
	flagBase    = flag.String("base", "", "Project base path")
	flagScale   = flag.Float64("scale", 0, "Export scale")
	flagOutput  = flag.String("output-type", "", "Model output type: 5, def or ef")
	flagFiles   = flag.String("files", "", "Comma separated files to export (pim,pic,pip,pit,pis,pia)")
	flagLogFile = flag.String("log", "", "Log file path")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ParseArgs parses flags from args instead of os.Args, for tools whose
// first argument is a subcommand. Positional arguments are left in
// flag.Args().
func ParseArgs(args []string) error {
	return flag.CommandLine.Parse(args)
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Logging.DumpLevel = 3
	}
	if *flagBase != "" {
		cfg.Project.BasePath = *flagBase
	}
	if *flagScale > 0 {
		cfg.Export.Scale = float32(*flagScale)
	}
	if *flagOutput != "" {
		cfg.Export.OutputType = *flagOutput
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagFiles != "" {
		cfg.Export.SelectFiles(strings.Split(*flagFiles, ","))
	}
}

// SelectFiles enables exactly the named file kinds.
func (e *ExportConfig) SelectFiles(kinds []string) {
	e.PIM, e.PIC, e.PIP, e.PIT, e.PIS, e.PIA = false, false, false, false, false, false
	for _, k := range kinds {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "pim":
			e.PIM = true
		case "pic":
			e.PIC = true
		case "pip":
			e.PIP = true
		case "pit":
			e.PIT = true
		case "pis":
			e.PIS = true
		case "pia":
			e.PIA = true
		}
	}
}
