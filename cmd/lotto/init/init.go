package init

import (
	"os"
	"path/filepath"

	"github.com/DE-labtory/lotto"
	"github.com/DE-labtory/lotto/config"
	"github.com/DE-labtory/lotto/elgamal"
	"github.com/DE-labtory/lotto/oracle"
	"github.com/kyokomi/emoji"
	"github.com/urfave/cli"
	"go.dedis.ch/kyber/v3/util/random"
)

func Cmd() cli.Command {
	return cli.Command{
		Name:      "init",
		Usage:     "Initialize lotto configuration and committee keys",
		UsageText: "lotto init [--admin ADDRESS] [--force] [FILE_PATH]",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "admin",
				Usage: "admin address, random when neither the flag nor the config file sets one",
			},
			cli.BoolFlag{
				Name:  "force",
				Usage: "replace an existing committee key file",
			},
		},
		Action: func(c *cli.Context) error {
			return initLotto(c.Args().First(), c.String("admin"), c.Bool("force"))
		},
	}
}

func initLotto(source, admin string, force bool) error {
	conf, err := config.Init(source)
	if err != nil {
		emoji.Println(":broken_heart: initialize failed with error: %s", err)
		return err
	}

	if admin != "" {
		conf.Identity.Admin = admin
	}
	if conf.Identity.Admin == "" {
		conf.Identity.Admin = randomAddress().String()
	}
	if _, err := lotto.ToAddress(conf.Identity.Admin); err != nil {
		emoji.Println(":broken_heart: invalid admin address: %s", err)
		return err
	}

	keys, err := committeeKeys(conf.Committee, force)
	if err != nil {
		emoji.Println(":broken_heart: committee setup failed with error: %s", err)
		return err
	}
	if conf.Identity.Oracle == "" {
		addr, err := oracle.AddressOf(keys.SignerPublic())
		if err != nil {
			return err
		}
		conf.Identity.Oracle = addr.String()
	}

	if err := config.Write(conf); err != nil {
		emoji.Println(":broken_heart: initialize failed with error: %s", err)
		return err
	}
	emoji.Printf(":key: committee %d of %d at %s\n", keys.Threshold, keys.Size(), conf.Committee.KeyFile)
	emoji.Printf(":crown: admin %s, oracle %s\n", conf.Identity.Admin, conf.Identity.Oracle)
	emoji.Printf(":beer: successfully initialized at %s\n", filepath.Dir(config.Path()))
	return nil
}

func committeeKeys(conf config.Committee, force bool) (*elgamal.KeySet, error) {
	if _, err := os.Stat(conf.KeyFile); err == nil && !force {
		return elgamal.LoadKeySet(conf.KeyFile)
	}
	keys, err := elgamal.Setup(conf.Threshold, conf.Size)
	if err != nil {
		return nil, err
	}
	if err := elgamal.SaveKeySet(conf.KeyFile, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func randomAddress() lotto.Address {
	b := make([]byte, lotto.AddressLength)
	random.Bytes(b, random.New())
	return lotto.BytesToAddress(b)
}
