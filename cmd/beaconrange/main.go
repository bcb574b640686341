// Command beaconrange 对信标 RSSI 样本做平滑并换算为距离.
//
//	beaconrange -b aa:bb:cc:dd:ee:ff --input-source in.txt --output-source out.txt
//	beaconrange -c beaconrange.toml
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/wyfcoding/beaconrange/app"
	"github.com/wyfcoding/beaconrange/config"
	"github.com/wyfcoding/beaconrange/xerrors"
)

// version 由 -ldflags "-X main.version=..." 注入.
var version = "dev"

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	flags := config.NewFlagSet("beaconrange")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	path, _ := flags.GetString(config.FlagConfig)
	conf, err := config.Load(path, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return xerrors.ExitCode(err)
	}
	if conf.Version == "dev" {
		conf.Version = version
	}

	a, err := app.NewBuilder("beaconrange").WithConfig(conf).WithVersion(version).Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return xerrors.ExitCode(err)
	}
	return xerrors.ExitCode(a.Run(ctx))
}
