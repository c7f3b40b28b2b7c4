package main

import (
	"log"
	"os"
	"time"

	initCmd "github.com/DE-labtory/lotto/cmd/lotto/init"
	"github.com/DE-labtory/lotto/cmd/lotto/simulate"
	"github.com/DE-labtory/lotto/cmd/lotto/start"
	"github.com/DE-labtory/lotto/config"
	lottolog "github.com/DE-labtory/lotto/log"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "lotto"
	app.Version = "0.0.1"
	app.Compiled = time.Now()
	app.Usage = "Confidential lottery settlement with encrypted tickets and a threshold decryption oracle"
	app.UsageText = "lotto [options] command [command options] [arguments...]"
	app.Authors = []cli.Author{
		{
			Name:  "DE-labtory",
			Email: "de.labtory@gmail.com",
		},
	}
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "set debug mode",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "use configuration file at FILE_PATH instead of " + config.Path(),
		},
	}
	app.Before = func(c *cli.Context) error {
		if path := c.GlobalString("config"); path != "" {
			config.SetPath(path)
		}
		if c.GlobalBool("debug") {
			lottolog.SetToDebug()
		}
		return nil
	}

	app.Commands = []cli.Command{}
	app.Commands = append(app.Commands, initCmd.Cmd())
	app.Commands = append(app.Commands, start.Cmd())
	app.Commands = append(app.Commands, simulate.Cmd())

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
