package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/daftuyda/umamusume-auto-train/internal/config"
	"github.com/daftuyda/umamusume-auto-train/internal/fileutil"
)

// ConfigCmd groups configuration helpers.
type ConfigCmd struct {
	Check ConfigCheckCmd `cmd:"" help:"Validate the configuration file and environment"`
	Print ConfigPrintCmd `cmd:"" help:"Print the effective configuration"`
	Init  ConfigInitCmd  `cmd:"" help:"Write a configuration file with every default spelled out"`
}

type ConfigCheckCmd struct{}

func (ConfigCheckCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if _, err := cfg.PolicyConfig(); err != nil {
		return err
	}
	if _, err := cfg.LoopConfig(); err != nil {
		return err
	}
	fmt.Printf("%s: ok (goal %d fans, agent %s)\n", g.Config, cfg.Goal.Fans, cfg.Agent.URL)
	return nil
}

type ConfigPrintCmd struct{}

func (ConfigPrintCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(cfg.Encode())
	return err
}

type ConfigInitCmd struct {
	Force bool `help:"Overwrite an existing file"`
}

func (c ConfigInitCmd) Run(g *Globals) error {
	if !c.Force {
		if _, err := os.Stat(g.Config); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", g.Config)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := fileutil.WriteFileAtomic(g.Config, config.DefaultConfig().Encode(), 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", g.Config)
	return nil
}
