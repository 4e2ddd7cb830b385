package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/reflash/pkg/config"
	"github.com/robotalks/reflash/pkg/framework"
	"github.com/robotalks/reflash/pkg/update"
)

var hexFile string

func init() {
	config.SetupFlags()
	flag.StringVar(&hexFile, "hex", hexFile, "Firmware image in Intel HEX format.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if hexFile == "" && flag.NArg() > 0 {
		hexFile = flag.Arg(0)
	}
	if hexFile == "" {
		fmt.Fprintln(os.Stderr, "usage: reflash [flags] HEX-FILE")
		flag.PrintDefaults()
		os.Exit(2)
	}

	env := config.Default().MustNewEnv()
	defer env.Close()

	var res *update.Result
	err := framework.NewRunner().HandleSignals().
		Go(framework.NamedRun("update", framework.RunnableFunc(func(ctx context.Context) (err error) {
			res, err = env.Update(ctx, hexFile)
			return
		}))).
		Wait()
	if err == framework.ErrForcedExit {
		glog.Exitf("update interrupted, device state unknown")
	}
	if res != nil {
		fmt.Printf("%s: %s -> %s\n", res.State, res.Before, res.After)
		if res.SnapshotFile != "" {
			fmt.Printf("snapshot: %s\n", res.SnapshotFile)
		}
		if res.RestoreErr != nil {
			fmt.Printf("restore incomplete: %v\n", res.RestoreErr)
		}
	}
	if err != nil || res == nil || res.State != update.Done {
		env.Close()
		if err == nil && res != nil {
			err = res.Err
		}
		if err == nil {
			err = fmt.Errorf("update did not complete")
		}
		glog.Exitf("update failed: %v", err)
	}
}
