package main

import (
	"github.com/urfave/cli/v2"
	"github.com/xyths/loggrid/cmd/utils"
	"github.com/xyths/loggrid/trader/grid"
)

var (
	tradeCommand = &cli.Command{
		Action: trade,
		Name:   "trade",
		Usage:  "Trade with the logarithmic grid strategy",
	}
	printCommand = &cli.Command{
		Action: printGrid,
		Name:   "print",
		Usage:  "Print the grid a config would trade, without placing orders",
	}
	clearCommand = &cli.Command{
		Action: clear,
		Name:   "clear",
		Usage:  "Cancel all grid orders and wipe the persisted levels",
		Flags: []cli.Flag{
			utils.DryRunFlag,
		},
	}
	cleanCommand = &cli.Command{
		Action: clean,
		Name:   "clean",
		Usage:  "Compact the level ledger, dropping stale duplicate rows",
		Flags: []cli.Flag{
			utils.DryRunFlag,
		},
	}
	suggestCommand = &cli.Command{
		Action: suggest,
		Name:   "suggest",
		Usage:  "Suggest a risk level per symbol from recent volatility",
	}
)

func newTrader(ctx *cli.Context) (*grid.GridTrader, error) {
	return grid.New(ctx.String(utils.ConfigFlag.Name))
}

func trade(ctx *cli.Context) error {
	t, err := newTrader(ctx)
	if err != nil {
		return err
	}
	if err = t.Init(ctx.Context); err != nil {
		return err
	}
	defer t.Close(ctx.Context)
	return t.Start(ctx.Context)
}

func printGrid(ctx *cli.Context) error {
	t, err := newTrader(ctx)
	if err != nil {
		return err
	}
	if err = t.Init(ctx.Context); err != nil {
		return err
	}
	defer t.Close(ctx.Context)
	return t.Print(ctx.Context)
}

func clear(ctx *cli.Context) error {
	t, err := newTrader(ctx)
	if err != nil {
		return err
	}
	if err = t.Init(ctx.Context); err != nil {
		return err
	}
	defer t.Close(ctx.Context)
	return t.Clear(ctx.Context, ctx.Bool(utils.DryRunFlag.Name))
}

func clean(ctx *cli.Context) error {
	t, err := newTrader(ctx)
	if err != nil {
		return err
	}
	defer t.Close(ctx.Context)
	return t.Clean(ctx.Context, ctx.Bool(utils.DryRunFlag.Name))
}

func suggest(ctx *cli.Context) error {
	t, err := newTrader(ctx)
	if err != nil {
		return err
	}
	return t.Suggest(ctx.Context)
}
