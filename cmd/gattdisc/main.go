package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/ARMmbed/mbed-os-sub118/config"
	"github.com/ARMmbed/mbed-os-sub118/logger"
	"github.com/ARMmbed/mbed-os-sub118/util"
	"github.com/ARMmbed/mbed-os-sub118/wire/debug"
)

const logPrefix = "gattdisc"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gattdisc: %v\n", err)
		os.Exit(1)
	}
}

// env is what every command needs once the global flags are parsed.
type env struct {
	cfg   *config.Config
	trace *debug.DebugLogger
	close func()
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Name = "gattdisc"
	app.Usage = "Run GATT client discovery against a simulated peer"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "config file (default $GATTDISC_DIR/config.yaml)"},
		cli.StringFlag{Name: "log-level, l", Usage: "override log_level (trace, debug, info, warn, error)"},
		cli.BoolFlag{Name: "trace", Usage: "write every ATT packet to a JSON lines file in the report directory"},
		cli.DurationFlag{Name: "timeout, t", Value: 10 * time.Second, Usage: "give up after this long"},
	}

	app.Commands = []cli.Command{
		{
			Name:    "discover",
			Aliases: []string{"d"},
			Usage:   "Discover services and characteristics",
			Action:  discover,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "service, s", Usage: "only this service UUID"},
				cli.StringFlag{Name: "characteristic, u", Usage: "only this characteristic UUID (needs --service)"},
				cli.BoolFlag{Name: "descriptors", Usage: "also discover the descriptors of every characteristic"},
				cli.BoolFlag{Name: "json", Usage: "print the report as JSON"},
				cli.BoolFlag{Name: "save", Usage: "save the report to the report directory"},
			},
		},
		{
			Name:    "descriptors",
			Aliases: []string{"desc"},
			Usage:   "Discover the descriptors of every characteristic, or of one",
			Action:  descriptors,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "characteristic, u", Usage: "only this characteristic UUID"},
			},
		},
		{
			Name:   "dump-db",
			Usage:  "Print the attribute database of the simulated peer",
			Action: dumpDB,
		},
	}
	return app
}

// setup loads the configuration named by the global flags.
func setup(c *cli.Context) (*env, error) {
	cfg, err := config.LoadOrDefault(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.GlobalString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.TraceJSON(logPrefix, "config", cfg)

	e := &env{cfg: cfg, close: func() {}}
	if c.GlobalBool("trace") {
		path := filepath.Join(util.GetReportDir(), fmt.Sprintf("trace_%s.jsonl", time.Now().Format("2006-01-02_15-04-05")))
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrap(err, "can't create trace file")
		}
		logger.Info(logPrefix, "tracing ATT packets to %s", path)
		e.trace = debug.NewDebugLogger(f)
		e.close = func() { f.Close() }
	}
	return e, nil
}

func output(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}
